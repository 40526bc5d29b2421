package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontage-io/frontage"
	"github.com/frontage-io/frontage/geo"
	frontagehttp "github.com/frontage-io/frontage/http"
	"github.com/frontage-io/frontage/redirects"
)

// fakeStore is a map-backed ObjectStore keyed by "bucket/key".
type fakeStore struct {
	objects map[string]string
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) (*frontage.StoredObject, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, frontage.ErrNotFound
	}
	return &frontage.StoredObject{
		Body:        io.NopCloser(strings.NewReader(body)),
		Length:      int64(len(body)),
		ContentType: "text/html",
	}, nil
}

func (f *fakeStore) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://signed.example.com/" + bucket + "/" + key, nil
}

type handlerOptions struct {
	config    frontagehttp.HandlerConfig
	registry  frontage.RegistryConfig
	redirects *redirects.Table
	geo       bool
	// bucketless leaves the global bucket unset to exercise the inert
	// proxy path.
	bucketless bool
}

func newTestHandler(t *testing.T, store *fakeStore, opts handlerOptions) http.Handler {
	t.Helper()

	if opts.registry.Global.Bucket == "" && !opts.bucketless {
		opts.registry.Global.Bucket = "site"
	}

	registry := frontage.NewRegistry(store, opts.registry, nil)

	var geoService *geo.Service
	if opts.geo {
		geoService = geo.NewService(store, "site", nil)
	}

	handler := frontagehttp.NewHandler(&opts.config, registry, opts.redirects, geoService, nil)
	return handler.Router()
}

func doRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ServesRoot(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/index.html": "<html>home</html>",
	}}
	router := newTestHandler(t, store, handlerOptions{})

	rec := doRequest(router, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>home</html>", rec.Body.String())
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandler_CandidateProbing(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/about/index.html": "about dir",
		"site/pricing.html":     "pricing flat",
	}}
	router := newTestHandler(t, store, handlerOptions{})

	rec := doRequest(router, httptest.NewRequest("GET", "/about", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "about dir", rec.Body.String())

	rec = doRequest(router, httptest.NewRequest("GET", "/pricing", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pricing flat", rec.Body.String())
}

func TestHandler_TrailingSlashRedirect(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/docs/index.html": "docs",
	}}
	router := newTestHandler(t, store, handlerOptions{
		registry: frontage.RegistryConfig{
			Global: frontage.LayerConfig{Policy: frontage.SlashRedirect},
		},
	})

	rec := doRequest(router, httptest.NewRequest("GET", "/docs/?page=2", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/docs?page=2", rec.Header().Get("Location"))
}

func TestHandler_TrailingSlashOnlyCanonicalRedirect(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/docs/index.html": "docs",
	}}
	router := newTestHandler(t, store, handlerOptions{
		registry: frontage.RegistryConfig{
			Global: frontage.LayerConfig{
				Policy:            frontage.SlashRewrite,
				TrailingSlashOnly: true,
				RedirectCode:      301,
			},
		},
	})

	rec := doRequest(router, httptest.NewRequest("GET", "/docs", nil))

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/docs/", rec.Header().Get("Location"))
}

func TestHandler_LocaleLayer(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/index.html":         "global home",
		"site/fr/index.html":      "accueil",
		"site/fr/page/index.html": "page fr",
	}}
	router := newTestHandler(t, store, handlerOptions{
		registry: frontage.RegistryConfig{
			Locales: frontage.LocaleTable{"fr": {}},
		},
	})

	t.Run("locale subtree", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/fr/page", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "page fr", rec.Body.String())
	})

	t.Run("bare locale code falls to the global layer", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/fr", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "accueil", rec.Body.String())
	})

	t.Run("redirect location keeps the locale mount", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/fr/page/", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/fr/page", rec.Header().Get("Location"))
	})
}

func TestHandler_LocaleCookieSwitch(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/index.html":    "global home",
		"site/fr/index.html": "accueil",
	}}
	router := newTestHandler(t, store, handlerOptions{
		registry: frontage.RegistryConfig{
			Locales:         frontage.LocaleTable{"fr": {}},
			SwitchablePaths: []string{"/"},
		},
	})

	t.Run("switches on the entry path", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?utm=x", nil)
		req.AddCookie(&http.Cookie{Name: "locale", Value: "fr"})

		rec := doRequest(router, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/fr?utm=x", rec.Header().Get("Location"))
	})

	t.Run("unregistered locale cookie is ignored", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: "locale", Value: "xx"})

		rec := doRequest(router, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "global home", rec.Body.String())
	})

	t.Run("cookie never fires inside the subtree", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/fr", nil)
		req.AddCookie(&http.Cookie{Name: "locale", Value: "fr"})

		rec := doRequest(router, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "accueil", rec.Body.String())
	})
}

func TestHandler_SubrouteLayer(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/index.html":           "global home",
		"docs-bucket/docs/intro":    "intro page",
		"docs-bucket/docs/404.html": "docs not found",
	}}
	router := newTestHandler(t, store, handlerOptions{
		registry: frontage.RegistryConfig{
			Subroutes: frontage.SubrouteTable{"/docs/*": "docs-bucket"},
		},
	})

	rec := doRequest(router, httptest.NewRequest("GET", "/docs/intro", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "intro page", rec.Body.String())
}

func TestHandler_ErrorPages(t *testing.T) {
	t.Run("custom 404 page with forced status", func(t *testing.T) {
		store := &fakeStore{objects: map[string]string{
			"site/index.html": "home",
			"site/404.html":   "<html>lost?</html>",
		}}
		router := newTestHandler(t, store, handlerOptions{})

		rec := doRequest(router, httptest.NewRequest("GET", "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "<html>lost?</html>", rec.Body.String())
	})

	t.Run("directory-form 404 wins over the flat form", func(t *testing.T) {
		store := &fakeStore{objects: map[string]string{
			"site/404/index.html": "dir 404",
			"site/404.html":       "flat 404",
		}}
		router := newTestHandler(t, store, handlerOptions{})

		rec := doRequest(router, httptest.NewRequest("GET", "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "dir 404", rec.Body.String())
	})

	t.Run("locale miss falls back to the global 404", func(t *testing.T) {
		store := &fakeStore{objects: map[string]string{
			"site/404.html": "global 404",
		}}
		router := newTestHandler(t, store, handlerOptions{
			registry: frontage.RegistryConfig{
				Locales: frontage.LocaleTable{"fr": {}},
			},
		})

		rec := doRequest(router, httptest.NewRequest("GET", "/fr/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "global 404", rec.Body.String())
	})

	t.Run("plain text terminal fallback", func(t *testing.T) {
		store := &fakeStore{objects: map[string]string{}}
		router := newTestHandler(t, store, handlerOptions{})

		rec := doRequest(router, httptest.NewRequest("GET", "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Page Not Found", rec.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	})
}

func TestHandler_InertWithoutBucket(t *testing.T) {
	// No bucket anywhere: the proxy is inert but the process keeps
	// serving redirect-table entries and the hardcoded error page.
	table, err := redirects.Parse([]byte(`{"/old": "/new"}`), redirects.Options{}, nil)
	require.NoError(t, err)

	store := &fakeStore{objects: map[string]string{}}
	router := newTestHandler(t, store, handlerOptions{
		bucketless: true,
		redirects:  table,
	})

	t.Run("redirect entries still serve", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/old", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/new", rec.Header().Get("Location"))
	})

	t.Run("proxied paths answer with the plain-text error", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/anything", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Page Not Found", rec.Body.String())
	})
}

func TestHandler_OversizedObject(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/downloads/big.bin": strings.Repeat("x", int(frontage.OverflowSize)+1),
	}}
	router := newTestHandler(t, store, handlerOptions{})

	rec := doRequest(router, httptest.NewRequest("GET", "/downloads/big.bin", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://signed.example.com/site/downloads/big.bin", rec.Header().Get("Location"))
}

func TestHandler_PostServedLikeGet(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"site/form/index.html": "form page",
	}}
	router := newTestHandler(t, store, handlerOptions{})

	rec := doRequest(router, httptest.NewRequest("POST", "/form", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "form page", rec.Body.String())
}

func TestHandler_RedirectTable(t *testing.T) {
	table, err := redirects.Parse([]byte(`{
		"/old": {"target": "/new", "status": 301},
		"/blog": "https://blog.example.com"
	}`), redirects.Options{}, nil)
	require.NoError(t, err)

	store := &fakeStore{objects: map[string]string{
		"site/index.html": "home",
	}}
	router := newTestHandler(t, store, handlerOptions{redirects: table})

	t.Run("internal redirect keeps the query", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/old?ref=1", nil))
		assert.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, "/new?ref=1", rec.Header().Get("Location"))
	})

	t.Run("external redirect drops the query", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/blog?ref=1", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://blog.example.com", rec.Header().Get("Location"))
	})

	t.Run("proxy still serves unredirected paths", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandler_GeoEndpoints(t *testing.T) {
	const dataset = `{"points": [
		{"id": "london", "latitude": 51.5074, "longitude": -0.1278, "country_code": "UK"},
		{"id": "paris", "latitude": 48.8566, "longitude": 2.3522, "country_code": "FR"}
	]}`

	store := &fakeStore{objects: map[string]string{
		"site/index.html":  "home",
		"site/stores.json": dataset,
	}}
	router := newTestHandler(t, store, handlerOptions{
		geo: true,
		config: frontagehttp.HandlerConfig{
			Geography: frontagehttp.GeographyConfig{
				Route:                  "/geo",
				IncludeAbsoluteClosest: true,
			},
		},
	})

	viewerRequest := func(method, target string, body io.Reader) *http.Request {
		req := httptest.NewRequest(method, target, body)
		req.Header.Set("cloudfront-viewer-country", "FR")
		req.Header.Set("cloudfront-viewer-latitude", "48.85")
		req.Header.Set("cloudfront-viewer-longitude", "2.35")
		return req
	}

	t.Run("echo endpoint reflects the viewer", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("GET", "/geo", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var viewer geo.Viewer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &viewer))
		assert.Equal(t, "FR", viewer.CountryCode)
		assert.Equal(t, 48.85, viewer.Latitude)
	})

	t.Run("echo endpoint returns the placeholder when unlocated", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("GET", "/geo", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var viewer geo.Viewer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &viewer))
		assert.Equal(t, "Point Nemo", viewer.City)
	})

	t.Run("closest-to-user with inline points", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("POST", "/geo/closest-to-user", strings.NewReader(dataset)))
		assert.Equal(t, http.StatusOK, rec.Code)

		var result geo.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.NotNil(t, result.Absolute)
		assert.Equal(t, "paris", result.Absolute.ID)
		assert.Equal(t, geo.Kilometers, result.Unit)
	})

	t.Run("closest-to-user requires a located viewer", func(t *testing.T) {
		rec := doRequest(router, httptest.NewRequest("POST", "/geo/closest-to-user", strings.NewReader(dataset)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("closest-to-user rejects a bad point document", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("POST", "/geo/closest-to-user", strings.NewReader(`{"unit": "km"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("named dataset", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("GET", "/geo/closest-to-user/stores?unit=mi", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var result geo.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.NotNil(t, result.Absolute)
		assert.Equal(t, "paris", result.Absolute.ID)
		assert.Equal(t, geo.Miles, result.Unit)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("GET", "/geo/closest-to-user/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid unit override", func(t *testing.T) {
		rec := doRequest(router, viewerRequest("GET", "/geo/closest-to-user/stores?unit=leagues", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
