package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stepviz/internal/logging"
	"stepviz/internal/model"
	"stepviz/internal/trace"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	resp   model.SimulationResponse
	run    model.RunResult
	runErr error
	got    VisualizeRequest
	lang   model.Language
}

func (f *fakeAnalyzer) AnalyzeLocally(_ context.Context, source string, lang model.Language, stdin string) model.SimulationResponse {
	f.got = VisualizeRequest{Code: source, Stdin: stdin}
	f.lang = lang
	return f.resp
}

func (f *fakeAnalyzer) Run(_ context.Context, source string, lang model.Language, stdin string) (model.RunResult, error) {
	f.got = VisualizeRequest{Code: source, Stdin: stdin}
	f.lang = lang
	return f.run, f.runErr
}

func newTestServer(t *testing.T, a Analyzer) *Server {
	t.Helper()
	s, err := NewServer(a, logging.Discard())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func steps(n int) []model.ExecutionStep {
	out := make([]model.ExecutionStep, n)
	for i := range out {
		out[i] = model.ExecutionStep{StepID: i + 1, Line: i + 1, Stack: []model.StackFrame{}, Heap: []model.HeapObject{}}
	}
	return out
}

func TestVisualize(t *testing.T) {
	fa := &fakeAnalyzer{resp: model.SimulationResponse{Steps: steps(2), Flowchart: "graph TD;\n"}}
	s := newTestServer(t, fa)

	w := do(t, s, http.MethodPost, "/api/visualize", gin.H{"code": "x = 1", "language": "py", "stdin": "in"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp model.SimulationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Steps, 2)
	assert.Equal(t, model.LanguagePython, fa.lang)
	assert.Equal(t, "in", fa.got.Stdin)
}

func TestVisualize_StatusByErrorKind(t *testing.T) {
	tests := []struct {
		kind   model.ErrorKind
		status int
	}{
		{model.ErrorKindTracer, http.StatusOK},
		{model.ErrorKindMalformed, http.StatusOK},
		{model.ErrorKindBackend, http.StatusBadGateway},
		{model.ErrorKindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			fa := &fakeAnalyzer{resp: model.SimulationResponse{Steps: []model.ExecutionStep{}, Error: "x", ErrorKind: tt.kind}}
			w := do(t, newTestServer(t, fa), http.MethodPost, "/api/visualize", gin.H{"code": "x", "language": "cpp"})
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"steps":[]`)
		})
	}
}

func TestVisualize_BadRequests(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{})
	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing code", gin.H{"language": "cpp"}, "INVALID_BODY"},
		{"missing language", gin.H{"code": "x"}, "INVALID_BODY"},
		{"unknown language", gin.H{"code": "x", "language": "cobol"}, "UNSUPPORTED_LANGUAGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/visualize", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
			assert.Equal(t, tt.code, er.Code)
		})
	}
}

func TestRun(t *testing.T) {
	fa := &fakeAnalyzer{run: model.RunResult{Success: true, Output: "Hello, World!\n"}}
	w := do(t, newTestServer(t, fa), http.MethodPost, "/api/run", gin.H{"code": "x", "language": "c++"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"output":"Hello, World!\n"}`, w.Body.String())
	assert.Equal(t, model.LanguageCpp, fa.lang)

	fa = &fakeAnalyzer{
		run:    model.RunResult{Success: false, Output: "Error: refused"},
		runErr: fmt.Errorf("%w: refused", trace.ErrBackendFailure),
	}
	w = do(t, newTestServer(t, fa), http.MethodPost, "/api/run", gin.H{"code": "x", "language": "cpp"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	fa = &fakeAnalyzer{runErr: errors.New("odd")}
	w = do(t, newTestServer(t, fa), http.MethodPost, "/api/run", gin.H{"code": "x", "language": "cpp"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFlowchart(t *testing.T) {
	w := do(t, newTestServer(t, &fakeAnalyzer{}), http.MethodPost, "/api/flowchart", gin.H{"code": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"flowchart":"graph TD;\nStart((Start)) --> End((End));\n"}`, w.Body.String())
}

func TestLineContext(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{})
	w := do(t, s, http.MethodPost, "/api/line-context", gin.H{"code": "a\nb\nc\nd\ne", "line": 3})
	require.Equal(t, http.StatusOK, w.Code)

	var lc model.LineContext
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lc))
	assert.Equal(t, "c", lc.Target)
	assert.Equal(t, "b", lc.Before1)

	w = do(t, s, http.MethodPost, "/api/line-context", gin.H{"code": "a", "line": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaticAndMeta(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{})

	w := do(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>stepviz</title>")

	w = do(t, s, http.MethodGet, "/static/app.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/help", nil)
	assert.Contains(t, w.Body.String(), "stepviz "+model.Version)
	assert.NotContains(t, w.Body.String(), "{{VERSION}}")

	w = do(t, s, http.MethodGet, "/api/health", nil)
	assert.JSONEq(t, `{"status":"ok","version":"`+model.Version+`"}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestIDPropagates(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func dialStream(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/visualize/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestVisualizeStream_RejectsCrossOrigin(t *testing.T) {
	fa := &fakeAnalyzer{}
	srv := httptest.NewServer(newTestServer(t, fa).Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/visualize/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, fa.got.Code)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {srv.URL}})
	require.NoError(t, err)
	conn.Close()
}

func TestVisualizeStream_OrderedSteps(t *testing.T) {
	fa := &fakeAnalyzer{resp: model.SimulationResponse{Steps: steps(4), Flowchart: "graph TD;\n", Output: "out"}}
	conn := dialStream(t, newTestServer(t, fa))

	require.NoError(t, conn.WriteJSON(VisualizeRequest{Code: "x", Language: "python"}))

	var ids []int
	for {
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "done" {
			assert.Equal(t, 4, msg.Total)
			assert.Equal(t, "graph TD;\n", msg.Flowchart)
			assert.Equal(t, "out", msg.Output)
			assert.Empty(t, msg.Error)
			break
		}
		require.Equal(t, "step", msg.Type)
		ids = append(ids, msg.Step.StepID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}

func TestVisualizeStream_BadLanguage(t *testing.T) {
	conn := dialStream(t, newTestServer(t, &fakeAnalyzer{}))
	require.NoError(t, conn.WriteJSON(VisualizeRequest{Code: "x", Language: "cobol"}))

	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "done", msg.Type)
	assert.Contains(t, msg.Error, "unsupported language")
}
