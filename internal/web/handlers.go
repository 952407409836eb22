package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/JonMunkholm/ParkingTable/internal/logging"
	appmw "github.com/JonMunkholm/ParkingTable/internal/web/middleware"
	"github.com/JonMunkholm/ParkingTable/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// pageTitle is shown in the document title and page header.
const pageTitle = "Parking Sensors"

// maxSearchBody caps JSON search request bodies.
const maxSearchBody = 4 << 10

// tableFor returns the session table or answers with an error.
func (s *Server) tableFor(w http.ResponseWriter, r *http.Request) (*core.RecordTable, bool) {
	table, ok := appmw.TableFromContext(r.Context())
	if !ok {
		s.respondError(w, r, core.ErrSessionNotFound, http.StatusUnauthorized)
		return nil, false
	}
	return table, true
}

// handlePage renders the full table page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := templates.PageData{
		Title:   pageTitle,
		View:    table.View(),
		Columns: core.Columns,
	}
	if err := templates.TablePage(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}

// handleTablePartial renders the #sensor-table fragment. Polled while a
// search is pending.
func (s *Server) handleTablePartial(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.TablePartial(table.View(), core.Columns).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render table", "error", err)
	}
}

// handleGetTable returns the current view.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}
	s.renderView(w, r, table, http.StatusOK)
}

// handleColumns returns the column layout and page size choices.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"columns":         core.Columns,
		"pageSizeOptions": core.PageSizeOptions,
	})
}

// handleSearch records search input and schedules the debounced reload.
// The response reflects the table before the reload lands.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	key, err := searchKeyFrom(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if table.OnSearchInput(key) {
		logging.FromContext(r.Context()).Debug("search scheduled", "search_key", key)
	}
	s.renderView(w, r, table, http.StatusOK)
}

// searchKeyFrom reads searchKey from a JSON body or form values.
func searchKeyFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			SearchKey string `json:"searchKey"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid search request: %w", err)
		}
		return req.SearchKey, nil
	}
	return r.FormValue("searchKey"), nil
}

// handlePageSize changes the page size to one of the selector options.
func (s *Server) handlePageSize(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	n, err := strconv.Atoi(r.FormValue("pageSize"))
	if err != nil || !core.IsPageSizeOption(n) {
		s.respondError(w, r, fmt.Errorf("page size %q: %w", r.FormValue("pageSize"), core.ErrInvalidPageSize), http.StatusBadRequest)
		return
	}

	if err := table.SetPageSize(n); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.renderView(w, r, table, http.StatusOK)
}

// handlePageAction moves between pages. Moves past a boundary are no-ops.
func (s *Server) handlePageAction(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	var move func() bool
	switch action := chi.URLParam(r, "action"); action {
	case "first":
		move = table.GoFirst
	case "prev":
		move = table.GoPrev
	case "next":
		move = table.GoNext
	case "last":
		move = table.GoLast
	default:
		s.respondError(w, r, fmt.Errorf("%w: %q", errUnknownPageAction, action), http.StatusBadRequest)
		return
	}

	move()
	s.renderView(w, r, table, http.StatusOK)
}

// handleReload reloads the dataset with the current search key.
//
// A failed load keeps the previous records; the table is rendered with its
// error banner and a 502 status.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Table.LoadTimeout)
	defer cancel()

	status := http.StatusOK
	if err := table.Load(ctx); err != nil && !errors.Is(err, core.ErrStaleResponse) {
		logging.FromContext(r.Context()).Warn("reload failed",
			"error", err,
			"code", core.MapError(err).Code,
		)
		status = http.StatusBadGateway
	}
	s.renderView(w, r, table, status)
}

// handleDeleteRecord deletes one sensor through the backend.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Table.LoadTimeout)
	defer cancel()

	removed, err := table.DeleteRow(ctx, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("sensor deleted",
		"id", id,
		"removed_locally", removed,
	)
	s.renderView(w, r, table, http.StatusOK)
}

// handleExport downloads the full dataset as CSV, ignoring pagination.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}

	data, ok := table.Export()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.cfg.Table.ExportFileName))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

// handleHealth reports liveness, live sessions and backend call slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"backend":  s.cfg.Backend.Kind,
		"sessions": s.sessions.Len(),
		"calls":    s.backend.Status(),
	})
}
