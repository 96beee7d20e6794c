package web

import (
	"errors"
	"net/http"
	"strings"

	"stepviz/internal/flowchart"
	"stepviz/internal/model"
	"stepviz/internal/trace"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every 4xx/5xx that is not a domain result.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// VisualizeRequest is the body of /api/visualize, /api/run and the first
// websocket message of /api/visualize/stream.
type VisualizeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
	Stdin    string `json:"stdin"`
}

// FlowchartRequest is the body of /api/flowchart.
type FlowchartRequest struct {
	Code string `json:"code"`
}

// LineContextRequest is the body of /api/line-context.
type LineContextRequest struct {
	Code string `json:"code"`
	Line int    `json:"line" binding:"required,gte=1"`
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: code, Details: err.Error()})
}

// statusFor maps an analysis outcome to an HTTP status. Errors caused by the
// user's program are still a successful API call.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.ErrorKindBackend:
		return http.StatusBadGateway
	case model.ErrorKindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (s *Server) bindVisualize(c *gin.Context) (VisualizeRequest, model.Language, bool) {
	var req VisualizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_BODY", err)
		return req, "", false
	}
	lang, err := model.ParseLanguage(req.Language)
	if err != nil {
		badRequest(c, "UNSUPPORTED_LANGUAGE", err)
		return req, "", false
	}
	return req, lang, true
}

// handleVisualize handles POST /api/visualize.
func (s *Server) handleVisualize(c *gin.Context) {
	req, lang, ok := s.bindVisualize(c)
	if !ok {
		return
	}
	resp := s.analyzer.AnalyzeLocally(c.Request.Context(), req.Code, lang, req.Stdin)
	c.JSON(statusFor(resp.ErrorKind), resp)
}

// handleRun handles POST /api/run.
func (s *Server) handleRun(c *gin.Context) {
	req, lang, ok := s.bindVisualize(c)
	if !ok {
		return
	}
	res, err := s.analyzer.Run(c.Request.Context(), req.Code, lang, req.Stdin)
	if err != nil {
		s.logger.Warn("run failed", "error", err, "request_id", c.GetString("request_id"))
		status := http.StatusInternalServerError
		if errors.Is(err, trace.ErrBackendFailure) {
			status = http.StatusBadGateway
		}
		c.JSON(status, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleFlowchart handles POST /api/flowchart.
func (s *Server) handleFlowchart(c *gin.Context) {
	var req FlowchartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_BODY", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flowchart": flowchart.Build(req.Code)})
}

// handleLineContext handles POST /api/line-context.
func (s *Server) handleLineContext(c *gin.Context) {
	var req LineContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_BODY", err)
		return
	}
	c.JSON(http.StatusOK, model.GetLineContext(req.Code, req.Line))
}

func (s *Server) handleHelp(c *gin.Context) {
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(text))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": model.Version})
}
