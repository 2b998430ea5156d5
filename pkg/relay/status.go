// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// DirectionStatus is the state of one direction as reported by the status
// API.
type DirectionStatus struct {
	Name     string `json:"name"`
	From     string `json:"from_room"`
	To       string `json:"to_room"`
	Running  bool   `json:"running"`
	Received int64  `json:"received"`
	Filtered int64  `json:"filtered"`
	Posted   int64  `json:"posted"`
	Queued   int    `json:"queued"`
	Error    string `json:"error,omitempty"`
}

// CacheStatus reports the identity cache sizes.
type CacheStatus struct {
	Users int `json:"users"`
	Rooms int `json:"rooms"`
}

// Status is the body of GET /api/status.
type Status struct {
	Session    string            `json:"session"`
	Uptime     string            `json:"uptime"`
	Directions []DirectionStatus `json:"directions"`
	Cache      *CacheStatus      `json:"cache,omitempty"`
}

// Status snapshots the bridge counters.
func (b *Bridge) Status() Status {
	st := Status{
		Session: b.session,
		Uptime:  time.Since(b.startedAt).Truncate(time.Second).String(),
	}
	for _, d := range b.directions {
		ds := DirectionStatus{
			Name:     d.name,
			From:     d.fromRoom,
			To:       d.toRoom,
			Running:  d.running.Load(),
			Received: d.received.Load(),
			Filtered: d.filtered.Load(),
			Posted:   d.posted.Load(),
			Queued:   d.queue.Len(),
		}
		if msg := d.lastErr.Load(); msg != nil {
			ds.Error = *msg
		}
		st.Directions = append(st.Directions, ds)
	}
	if b.cache != nil {
		users, rooms := b.cache.CacheSize()
		st.Cache = &CacheStatus{Users: users, Rooms: rooms}
	}
	return st
}

// HandleStatus is an HTTP handler for GET /api/status.
func (b *Bridge) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.log.Debug().Str("remote_addr", r.RemoteAddr).Msg("Status requested")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.Status()); err != nil {
		b.log.Err(err).Msg("Failed to write status response")
	}
}

// ServeAdminAPI serves the status API on addr until ctx is cancelled.
func (b *Bridge) ServeAdminAPI(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", b.HandleStatus)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()
	b.log.Info().Str("addr", addr).Msg("Starting admin API")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
