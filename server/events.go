package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/smallnest/ragplayground/playground"
)

// eventBuffer is the number of changes queued per client before changes are
// dropped for that client.
const eventBuffer = 16

// handleEvents streams session changes as server-sent events. The optional
// watch query parameter is a comma separated list of state fields; changes
// touching none of them are skipped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				watch = append(watch, f)
			}
		}
	}

	clientID := uuid.New().String()
	changes := make(chan playground.Change, eventBuffer)
	cancel := s.session.Subscribe(playground.ListenerFunc(func(c playground.Change) {
		select {
		case changes <- c:
		default:
			s.logger.Warn("SSE client %s is too slow, dropping change", clientID)
		}
	}))
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE client %s connected", clientID)
	fmt.Fprintf(w, "event: ping\ndata: %s\n\n", clientID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client %s disconnected", clientID)
			return
		case c := <-changes:
			if !watched(c, watch) {
				continue
			}
			data, err := json.Marshal(c)
			if err != nil {
				s.logger.Error("failed to encode change: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func watched(c playground.Change, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, f := range watch {
		if c.Has(f) {
			return true
		}
	}
	return false
}
