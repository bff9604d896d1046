package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/entityloader"
)

type noopDocuments struct{}

func (noopDocuments) FindOne(ctx context.Context, contentType, documentID string, opts domain.FindOptions) (domain.Entity, error) {
	panic("not implemented")
}

func (noopDocuments) FindMany(ctx context.Context, contentType string, opts domain.FindOptions) ([]domain.Entity, error) {
	panic("not implemented")
}

func TestLoggingMiddlewareWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	handler := RequestID(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	line := buf.String()
	if !strings.Contains(line, "[HTTP] GET /api/articles 418") {
		t.Fatalf("expected request line in log, got %q", line)
	}
	if !strings.Contains(line, "req-1") {
		t.Fatalf("expected request id in log, got %q", line)
	}
	if rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected incoming request id to be echoed")
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated request id in context and header, got %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestDataLoaderMiddlewareAttachesLoader(t *testing.T) {
	var loader *entityloader.EntityLoader
	handler := DataLoaderMiddleware(noopDocuments{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loader = entityloader.FromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if loader == nil {
		t.Fatalf("expected a request-scoped loader in the context")
	}
}
