package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type observedRequest struct {
	method    string
	operation string
	status    int
}

type requestRecorder struct {
	requests []observedRequest
}

func (r *requestRecorder) ObserveRequest(method, operation string, status int, _ time.Duration) {
	r.requests = append(r.requests, observedRequest{method: method, operation: operation, status: status})
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := &requestRecorder{}

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.AccessLog(recorder, zap.New(core)))

	huma.Register(api, huma.Operation{
		OperationID: "ok",
		Method:      http.MethodGet,
		Path:        "/ok",
	}, func(context.Context, *struct{}) (*testOutput, error) {
		return &testOutput{Body: "ok"}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "missing",
		Method:      http.MethodGet,
		Path:        "/missing",
	}, func(context.Context, *struct{}) (*testOutput, error) {
		return nil, apierr.NotFound("Snippet not found")
	})

	for _, path := range []string{"/ok", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, recorder.requests, 2)
	assert.Equal(t, observedRequest{method: http.MethodGet, operation: "ok", status: http.StatusOK}, recorder.requests[0])
	assert.Equal(t, observedRequest{method: http.MethodGet, operation: "missing", status: http.StatusNotFound}, recorder.requests[1])

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/missing", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}
