package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/middleware"
	"github.com/neudev/attemptd/internal/response"
	ws "github.com/neudev/attemptd/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams attempt events to the UI.
type WSHandler struct {
	registry *attempt.Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(registry *attempt.Registry, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptEvents godoc
// WS /ws/v1/attempts/:activity_id/events
// Pushes the current state, then every countdown tick and state change.
// The UI may send {"action":"ping"} or {"action":"finish"}.
func (h *WSHandler) AttemptEvents(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	activityID, err := strconv.ParseInt(c.Param("activity_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	m, ok := h.registry.Get(id, activityID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int64("activity_id", activityID).Str("user", id.Namespace()).Logger()
	wsLog.Debug().Msg("Event stream connected")

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	actions := make(chan ws.Action, 4)
	go readActions(conn, actions, done, wsLog)

	if err := ws.WriteJSON(conn, ws.Event("state"), m.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case ev, open := <-events:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := ws.WriteJSON(conn, ws.Event(ev.Type), ev); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}

		case action, open := <-actions:
			if !open {
				wsLog.Debug().Msg("Event stream closed")
				return
			}
			switch action {
			case ws.ActionPing:
				_ = ws.WriteTyped(conn, ws.Envelope{Event: ws.EventPong})
			case ws.ActionFinish:
				if id.IsTeacher() {
					_ = ws.WriteError(conn, "only students can finish an attempt")
					continue
				}
				// Finish blocks on the network; the outcome arrives as a "submitted" event.
				go func() {
					if _, err := m.Finish(c.Request.Context()); err != nil {
						wsLog.Info().Err(err).Msg("Finish from event stream failed")
					}
				}()
			default:
				_ = ws.WriteError(conn, "unknown action: "+string(action))
			}
		}
	}
}

// readActions forwards UI actions until the connection drops.
func readActions(conn *websocket.Conn, out chan<- ws.Action, done <-chan struct{}, log zerolog.Logger) {
	defer close(out)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		select {
		case out <- msg.Action:
		case <-done:
			return
		}
	}
}
