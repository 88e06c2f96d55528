// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiServer struct {
	inv     *Inventory
	history *HistoryStore
	rescan  func()
}

// NewRouter exposes the inventory over HTTP. history and rescan may be nil.
func NewRouter(inv *Inventory, history *HistoryStore, rescan func()) http.Handler {
	s := &apiServer{inv: inv, history: history, rescan: rescan}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.handleHealthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/disks", s.handleDisks)
		r.Get("/disks/{name}", s.handleDisk)
		r.Get("/disks/{name}/history", s.handleHistory)
		r.Post("/rescan", s.handleRescan)
	})
	return r
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "devices": s.inv.Len()})
}

func (s *apiServer) handleDisks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.inv.Reports())
}

func (s *apiServer) handleDisk(w http.ResponseWriter, r *http.Request) {
	report, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history.disabled", "history store is not configured")
		return
	}
	report, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if report.Identity.Serial == "" {
		writeJSON(w, http.StatusOK, []HistoryPoint{})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "history.since", "since must be a positive duration")
			return
		}
		since = time.Now().Add(-d)
	}

	points, err := s.history.History(r.Context(), report.Identity.Serial, since)
	if err != nil {
		log.Error().Err(err).Str("device", report.Device).Msg("error reading history")
		writeError(w, http.StatusInternalServerError, "history.read", err.Error())
		return
	}
	if points == nil {
		points = []HistoryPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *apiServer) handleRescan(w http.ResponseWriter, _ *http.Request) {
	if s.rescan == nil {
		writeError(w, http.StatusNotImplemented, "rescan.disabled", "rescan is not available")
		return
	}
	s.rescan()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *apiServer) lookup(w http.ResponseWriter, r *http.Request) (DeviceReport, bool) {
	name := strings.TrimPrefix(chi.URLParam(r, "name"), "/dev/")
	if name == "" || strings.ContainsAny(name, "/\\") {
		writeError(w, http.StatusBadRequest, "device.invalid", "invalid device name")
		return DeviceReport{}, false
	}
	report, ok := s.inv.Report(name)
	if !ok {
		writeError(w, http.StatusNotFound, "device.not_found", "device not found")
		return DeviceReport{}, false
	}
	return report, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// Serve runs the HTTP server until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("starting api server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
