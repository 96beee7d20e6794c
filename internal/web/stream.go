package web

import (
	"stepviz/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// The default CheckOrigin rejects cross-origin handshakes.
var upgrader = websocket.Upgrader{}

// StreamMessage is one websocket frame of /api/visualize/stream.
// Type is "step" for each step in stepId order, then a single "done".
type StreamMessage struct {
	Type      string               `json:"type"`
	Step      *model.ExecutionStep `json:"step,omitempty"`
	Total     int                  `json:"total,omitempty"`
	Flowchart string               `json:"flowchart,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorKind model.ErrorKind      `json:"errorKind,omitempty"`
	Output    string               `json:"output,omitempty"`
}

// handleVisualizeStream handles GET /api/visualize/stream. The client sends
// one VisualizeRequest; the server replies with the steps and closes.
func (s *Server) handleVisualizeStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	logger := s.logger.With("request_id", c.GetString("request_id"))

	var req VisualizeRequest
	if err := ws.ReadJSON(&req); err != nil {
		logger.Info("websocket client went away", "error", err)
		return
	}
	lang, err := model.ParseLanguage(req.Language)
	if err != nil {
		_ = ws.WriteJSON(StreamMessage{Type: "done", Error: err.Error(), ErrorKind: model.ErrorKindInternal})
		return
	}

	resp := s.analyzer.AnalyzeLocally(c.Request.Context(), req.Code, lang, req.Stdin)
	for i := range resp.Steps {
		if err := ws.WriteJSON(StreamMessage{Type: "step", Step: &resp.Steps[i]}); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
	_ = ws.WriteJSON(StreamMessage{
		Type:      "done",
		Total:     len(resp.Steps),
		Flowchart: resp.Flowchart,
		Error:     resp.Error,
		ErrorKind: resp.ErrorKind,
		Output:    resp.Output,
	})
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
