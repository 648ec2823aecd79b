package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusTeapot, "x") })

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("http", "GET /ping/:id", "418"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("http", "GET /ping/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestUnaryServerInterceptor(t *testing.T) {
	ic := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Svc/Do"}

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("grpc", "/test.Svc/Do", "NotFound"))
	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("grpc", "/test.Svc/Do", "NotFound")))

	resp, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(AlertsTotal.WithLabelValues("s3", "error"))
	RecordAlert("s3", errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(AlertsTotal.WithLabelValues("s3", "error")))

	RecordInference("classify", nil, 30*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(InferenceDuration))
}

func TestHandler(t *testing.T) {
	SymbolsTotal.WithLabelValues("dot").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "visionlock_morse_symbols_total"))
}
