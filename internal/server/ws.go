package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/orchestrator"
)

// Recommender runs one recommendation request.
// *orchestrator.Orchestrator satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.Recommendation, int, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming frame.
type wsRequest struct {
	Type string `json:"type"` // "recommend" or "ping"
	ID   string `json:"id"`
	orchestrator.RecommendRequest
}

// wsResponse is the outgoing frame.
type wsResponse struct {
	Type           string                       `json:"type"` // "recommendation", "error" or "pong"
	ID             string                       `json:"id,omitempty"`
	Status         int                          `json:"status,omitempty"`
	Recommendation *orchestrator.Recommendation `json:"recommendation,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// RegisterRecommendationSocket mounts /ws/recommendations. Each frame is
// answered in order on the same connection.
func RegisterRecommendationSocket(r chi.Router, rec Recommender, logger *zap.Logger) {
	logger = logging.OrNop(logger)
	r.Get("/ws/recommendations", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		serveSocket(r.Context(), conn, rec, logger)
	})
}

func serveSocket(ctx context.Context, conn *websocket.Conn, rec Recommender, logger *zap.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			send(conn, logger, wsResponse{Type: "error", Status: http.StatusBadRequest, Error: "invalid message format"})
			continue
		}

		switch req.Type {
		case "ping":
			send(conn, logger, wsResponse{Type: "pong", ID: req.ID})
		case "recommend":
			out, status, err := rec.Recommend(ctx, req.RecommendRequest)
			if err != nil {
				send(conn, logger, wsResponse{Type: "error", ID: req.ID, Status: status, Error: err.Error()})
				continue
			}
			send(conn, logger, wsResponse{Type: "recommendation", ID: req.ID, Status: status, Recommendation: out})
		default:
			send(conn, logger, wsResponse{Type: "error", ID: req.ID, Status: http.StatusBadRequest, Error: "unknown message type: " + req.Type})
		}
	}
}

func send(conn *websocket.Conn, logger *zap.Logger, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		logger.Warn("websocket write failed", zap.Error(err))
	}
}
