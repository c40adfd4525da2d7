package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/client-portal-go/internal/infra/events"

	"go.uber.org/zap"
)

const sseKeepAlive = 25 * time.Second

// eventsHandler streams store changes as server-sent events until the
// client disconnects or the hub closes. Events only carry ids, so they act
// as refresh hints; each session sees only changes it could read.
func eventsHandler(hub *events.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			writeError(w, http.StatusServiceUnavailable, "change feed unavailable")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		actor := ActorFromContext(r.Context())
		changes, unsubscribe := hub.Subscribe(32)
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "retry: 3000\n\n")
		flusher.Flush()

		logger.Debug("events: subscriber connected", zap.String("user_id", actor.UserID()))
		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				logger.Debug("events: subscriber gone", zap.String("user_id", actor.UserID()))
				return
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case change, ok := <-changes:
				if !ok {
					return
				}
				if !change.VisibleTo(actor) {
					continue
				}
				data, err := json.Marshal(change)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Collection, data)
				flusher.Flush()
			}
		}
	}
}
