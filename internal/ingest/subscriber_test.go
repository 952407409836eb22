package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/ParkingTable/internal/config"
)

// fakeMessage implements mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeWriter struct {
	mu      sync.Mutex
	known   map[string]bool
	err     error
	updates []StatusUpdate
}

func (w *fakeWriter) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return false, w.err
	}
	w.updates = append(w.updates, StatusUpdate{SensorID: id, Status: status})
	return w.known[id], nil
}

func newTestSubscriber(w StatusWriter) *Subscriber {
	cfg := config.MQTTConfig{StatusTopic: "parking/sensors/+/status", QoS: 1}
	return NewSubscriber(cfg, w, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseStatusMessage(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    StatusUpdate
		wantErr string
	}{
		{
			name:    "json payload",
			topic:   "parking/sensors/s-17/status",
			payload: `{"status":"Occupied"}`,
			want:    StatusUpdate{SensorID: "s-17", Status: "Occupied"},
		},
		{
			name:    "bare payload",
			topic:   "parking/sensors/s-18/status",
			payload: "  Free\n",
			want:    StatusUpdate{SensorID: "s-18", Status: "Free"},
		},
		{
			name:    "json with extra fields",
			topic:   "parking/sensors/s-19/status",
			payload: `{"battery":81,"status":" Fault "}`,
			want:    StatusUpdate{SensorID: "s-19", Status: "Fault"},
		},
		{
			name:    "empty payload",
			topic:   "parking/sensors/s-1/status",
			payload: "",
			wantErr: "empty status",
		},
		{
			name:    "json without status",
			topic:   "parking/sensors/s-1/status",
			payload: `{"battery":12}`,
			wantErr: "empty status",
		},
		{
			name:    "broken json",
			topic:   "parking/sensors/s-1/status",
			payload: `{"status":`,
			wantErr: "decode status payload",
		},
		{
			name:    "short topic",
			topic:   "parking/sensors",
			payload: "Free",
			wantErr: "no sensor id",
		},
		{
			name:    "empty id level",
			topic:   "parking/sensors//status",
			payload: "Free",
			wantErr: "no sensor id",
		},
		{
			name:    "status too long",
			topic:   "parking/sensors/s-1/status",
			payload: strings.Repeat("x", maxStatusLen+1),
			wantErr: "longer than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStatusMessage(tt.topic, []byte(tt.payload), 2)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSensorIDLevel(t *testing.T) {
	tests := []struct {
		filter string
		want   int
	}{
		{"parking/sensors/+/status", 2},
		{"site/+/status", 1},
		{"parking/sensors/#", 2},
	}
	for _, tt := range tests {
		if got := sensorIDLevel(tt.filter); got != tt.want {
			t.Errorf("sensorIDLevel(%q) = %d, want %d", tt.filter, got, tt.want)
		}
	}
}

func TestSubscriber_HandleMessage(t *testing.T) {
	w := &fakeWriter{known: map[string]bool{"s-1": true}}
	s := newTestSubscriber(w)

	s.handleMessage(nil, fakeMessage{topic: "parking/sensors/s-1/status", payload: []byte(`{"status":"Occupied"}`)})
	s.handleMessage(nil, fakeMessage{topic: "parking/sensors/s-2/status", payload: []byte("Free")})
	s.handleMessage(nil, fakeMessage{topic: "parking/sensors/s-3/status", payload: nil})

	if len(w.updates) != 2 {
		t.Fatalf("updates = %v, want 2", w.updates)
	}
	if w.updates[0] != (StatusUpdate{SensorID: "s-1", Status: "Occupied"}) {
		t.Errorf("first update = %+v", w.updates[0])
	}

	got := s.Stats()
	want := Stats{Applied: 1, Unknown: 1, Rejected: 1}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestSubscriber_HandleMessageStoreError(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection refused")}
	s := newTestSubscriber(w)

	s.handleMessage(nil, fakeMessage{topic: "parking/sensors/s-1/status", payload: []byte("Free")})

	if s.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", s.Stats().Rejected)
	}
}

func TestSubscriber_CloseWithoutStart(t *testing.T) {
	s := newTestSubscriber(&fakeWriter{})
	s.Close()
}
