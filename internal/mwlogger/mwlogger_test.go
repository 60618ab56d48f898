package mwlogger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func TestNewMWLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zlog.Logger.Output(&buf)
	defer func() { zlog.Logger = prev }()

	engine := ginext.New(gin.TestMode)
	engine.GET("/ping", func(c *ginext.Context) {
		logger := LoggerFromContext(c.Request.Context())
		logger.Info().Msg("inside")
		c.Status(200)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("X-Client-Id", "browser-7")
	w := httptest.NewRecorder()

	NewMWLogger(engine).ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	require.Contains(t, buf.String(), `"request_id":"req-1"`)
	require.Contains(t, buf.String(), `"client_id":"browser-7"`)
}

func TestNewMWLogger_GeneratesID(t *testing.T) {
	engine := ginext.New(gin.TestMode)
	engine.GET("/", func(c *ginext.Context) { c.Status(204) })

	w := httptest.NewRecorder()
	NewMWLogger(engine).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 204, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	l := LoggerFromContext(context.Background())
	require.NotNil(t, l)
}
