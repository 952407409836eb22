package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/ParkingTable/internal/config"
	"github.com/JonMunkholm/ParkingTable/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(config.PlatformConfig{
		BaseURL:    srv.URL + "/",
		Token:      "tok",
		Timeout:    5 * time.Second,
		RetryCount: retries,
	})
}

func TestClient_FetchRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/sensors" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("searchKey"); got != "north gate" {
			t.Errorf("searchKey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sensors":[{"Id":"a1","Name__c":"P-1","Base_Station__r":{"Name":"North"}},{"Id":"a2","Name__c":"P-2"}],"defaultPageSize":25}`))
	}, 0)

	res, err := c.FetchRecords(context.Background(), "north gate")
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if res.DefaultPageSize != 25 || len(res.Sensors) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if keys := res.Sensors[0].Keys(); strings.Join(keys, ",") != "Id,Name__c,Base_Station__r" {
		t.Errorf("keys = %v, want server order", keys)
	}
}

func TestClient_FetchRecordsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"defaultPageSize":10}`))
	}, 0)

	res, err := c.FetchRecords(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sensors == nil {
		t.Error("Sensors is nil, want empty slice")
	}
}

func TestClient_FetchRecordsBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}, 0)

	if _, err := c.FetchRecords(context.Background(), ""); err == nil {
		t.Error("FetchRecords() accepted a non-JSON body")
	}
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
		notFound bool
	}{
		{http.StatusUnauthorized, "PLAT001", false},
		{http.StatusForbidden, "PLAT001", false},
		{http.StatusNotFound, "PLAT003", true},
		{http.StatusBadGateway, "PLAT002", false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}, 0)

			err := c.DeleteRecord(context.Background(), "a1")

			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tt.status {
				t.Fatalf("error = %v, want StatusError %d", err, tt.status)
			}
			if IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound() = %v", IsNotFound(err))
			}
			wrapped := errors.Join(errors.New("delete sensor a1"), err)
			if got := core.MapError(wrapped).Code; got != tt.wantCode {
				t.Errorf("MapError code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestClient_DeleteRecord(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}, 0)

	if err := c.DeleteRecord(context.Background(), "a0X 1"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if gotPath != "/sensors/a0X 1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"sensors":[],"defaultPageSize":10}`))
	}, 1)

	if _, err := c.FetchRecords(context.Background(), ""); err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchRecords(ctx, "")
	if err == nil || core.MapError(err).Code != "REQ001" {
		t.Errorf("error = %v, want REQ001", err)
	}
}
