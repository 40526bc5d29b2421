package http_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	frontagehttp "github.com/frontage-io/frontage/http"
)

func TestRequestLogger_SetsRequestID(t *testing.T) {
	handler := frontagehttp.RequestLogger(slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestLogger_UniqueIDs(t *testing.T) {
	handler := frontagehttp.RequestLogger(slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))

	assert.NotEqual(t, first.Header().Get("X-Request-Id"), second.Header().Get("X-Request-Id"))
}

func TestStripWWW(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := frontagehttp.StripWWW(next)

	t.Run("www host redirects to the bare host", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/page?q=1", nil)
		req.Host = "www.example.com"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "http://example.com/page?q=1", rec.Header().Get("Location"))
	})

	t.Run("bare host passes through", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/page", nil)
		req.Host = "example.com"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
