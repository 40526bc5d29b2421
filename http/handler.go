package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/frontage-io/frontage"
	"github.com/frontage-io/frontage/geo"
	"github.com/frontage-io/frontage/redirects"
)

// CORSConfig mirrors the go-chi/cors options the server exposes.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// GeographyConfig holds the geolocation endpoint settings. Route empty
// disables the endpoints entirely.
type GeographyConfig struct {
	Route                  string
	UseCountryCode         bool
	IncludeAbsoluteClosest bool
	BackwardsCompatible    bool
}

// HandlerConfig configures the HTTP surface.
type HandlerConfig struct {
	CORS      CORSConfig
	Geography GeographyConfig
	// LocaleSwitchCode is the status for cookie-driven locale redirects.
	LocaleSwitchCode int
	// StripWWW redirects www.<host> requests to the bare host.
	StripWWW bool
}

// Handler routes requests to the resolution engine and the extensions.
type Handler struct {
	config    HandlerConfig
	registry  *frontage.Registry
	redirects *redirects.Table
	geo       *geo.Service
	log       *slog.Logger
}

// NewHandler creates a Handler. redirectTable and geoService may be nil
// when the corresponding extension is not configured.
func NewHandler(cfg *HandlerConfig, registry *frontage.Registry, redirectTable *redirects.Table, geoService *geo.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		config:    *cfg,
		registry:  registry,
		redirects: redirectTable,
		geo:       geoService,
		log:       log,
	}
	if h.config.LocaleSwitchCode == 0 ||
		!frontage.ValidRedirectCode(h.config.LocaleSwitchCode) {
		h.config.LocaleSwitchCode = http.StatusSeeOther
	}
	return h
}

// Router builds the chi router. Redirect-table entries and the
// geolocation endpoints are mounted before the proxy catch-all, so they
// win against it; a redirect entry that duplicates an already-registered
// pattern is logged and skipped rather than aborting startup.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(h.log))
	if h.config.StripWWW {
		r.Use(StripWWW)
	}
	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	claimed := map[string]struct{}{}
	claim := func(pattern string) bool {
		norm := frontage.NormalizePattern(pattern)
		if _, taken := claimed[norm]; taken {
			h.log.Warn("route pattern already claimed, skipping", "pattern", pattern)
			return false
		}
		claimed[norm] = struct{}{}
		return true
	}

	if h.redirects != nil {
		for _, entry := range h.redirects.Entries() {
			if !claim(entry.Pattern) {
				continue
			}
			r.Get(entry.Pattern, h.redirectTo(entry))
		}
	}

	if h.geo != nil && h.config.Geography.Route != "" {
		route := h.config.Geography.Route
		claim(route)
		r.Route(route, func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			}))
			r.Get("/", h.handleGeoEcho)
			r.Post("/closest-to-user", h.handleClosest)
			r.Get("/closest-to-user/*", h.handleClosestDataset)
		})
	}

	proxy := http.HandlerFunc(h.handleProxy)
	for _, pattern := range []string{"/", "/*"} {
		if !claim(pattern) {
			continue
		}
		r.Method(http.MethodGet, pattern, proxy)
		r.Method(http.MethodPost, pattern, proxy)
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.renderErrorPage(w, req, h.registry.Global(), frontage.ErrorNotFound)
	})

	return r
}

func (h *Handler) redirectTo(entry redirects.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if entry.External() {
			http.Redirect(w, r, entry.Target, entry.Status)
			return
		}
		redirectWithQuery(w, r, entry.Target, entry.Status)
	}
}

// handleProxy is the request path for every proxied route: cookie-driven
// locale switch first, then layer ownership, then content resolution.
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if cookie, err := r.Cookie(frontage.LocaleCookieName); err == nil {
		if target, ok := h.registry.LocaleSwitch(path, cookie.Value); ok {
			h.log.Info("redirecting due to locale cookie",
				"path", path, "locale", cookie.Value)
			redirectWithQuery(w, r, target, h.config.LocaleSwitchCode)
			return
		}
	}

	match, ok := h.registry.OwnerOf(path)
	if !ok {
		h.renderErrorPage(w, r, nil, frontage.ErrorNotFound)
		return
	}

	res, err := match.Layer.Resolve(r.Context(), match.Rel, true)
	if err != nil {
		if !errors.Is(err, frontage.ErrNotFound) {
			h.log.Error("resolution failed", "path", path, "err", err)
			h.renderErrorPage(w, r, match.Layer, frontage.ErrorServerError)
			return
		}
		h.renderErrorPage(w, r, match.Layer, frontage.ErrorNotFound)
		return
	}

	switch res.Kind {
	case frontage.ResolutionObject:
		writeObject(w, res.Object, http.StatusOK)
	case frontage.ResolutionSignedURL:
		// The signed URL is single-use and request-specific; 303 keeps
		// clients from caching or retrying a stale redirect.
		http.Redirect(w, r, res.Object.SignedURL, http.StatusSeeOther)
	case frontage.ResolutionRedirect:
		redirectWithQuery(w, r, match.Mount+res.Location, match.Layer.RedirectCode())
	}
}

// renderErrorPage walks the layer's error-page chain and falls back to
// the hardcoded plain-text body. The status code is forced regardless of
// the resolved object's own metadata.
func (h *Handler) renderErrorPage(w http.ResponseWriter, r *http.Request, layer *frontage.Layer, kind frontage.ErrorKind) {
	if layer != nil {
		if obj := layer.ErrorPage(r.Context(), kind); obj != nil {
			writeObject(w, obj, kind.StatusCode())
			return
		}
	}
	writePlainError(w, kind)
}

func (h *Handler) handleGeoEcho(w http.ResponseWriter, r *http.Request) {
	viewer, _ := geo.ViewerFromHeaders(r.Header)
	writeJSON(w, http.StatusOK, viewer)
}

func (h *Handler) handleClosest(w http.ResponseWriter, r *http.Request) {
	viewer, located := geo.ViewerFromHeaders(r.Header)
	if !located {
		writeError(w, http.StatusNotFound, "not_located", "Viewer location unavailable")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Unreadable request body")
		return
	}

	q, err := geo.ParseQuery(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_points", "Invalid point document")
		return
	}

	writeJSON(w, http.StatusOK, geo.Closest(viewer, q, h.geoOptions(r)))
}

func (h *Handler) handleClosestDataset(w http.ResponseWriter, r *http.Request) {
	viewer, located := geo.ViewerFromHeaders(r.Header)
	if !located {
		writeError(w, http.StatusNotFound, "not_located", "Viewer location unavailable")
		return
	}

	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if name == "" {
		writeError(w, http.StatusNotFound, "not_found", "No dataset named")
		return
	}

	force := boolArg(r.URL.Query().Get("force_refresh"), false)
	q, err := h.geo.Dataset(r.Context(), name, force)
	if err != nil {
		if errors.Is(err, frontage.ErrNotFound) {
			h.log.Warn("dataset does not exist", "dataset", name)
		}
		writeError(w, http.StatusNotFound, "not_found", "Dataset unavailable")
		return
	}

	query := *q
	if unitArg := r.URL.Query().Get("unit"); unitArg != "" {
		unit, err := geo.ParseUnit(unitArg)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_unit", "Invalid distance unit")
			return
		}
		query.Unit = unit
	}

	writeJSON(w, http.StatusOK, geo.Closest(viewer, &query, h.geoOptions(r)))
}

// geoOptions resolves the per-request geography toggles: query parameters
// override the configured defaults.
func (h *Handler) geoOptions(r *http.Request) geo.Options {
	args := r.URL.Query()
	return geo.Options{
		CountryCodeComparison:  boolArg(args.Get("limit_by_country"), h.config.Geography.UseCountryCode),
		IncludeAbsoluteClosest: boolArg(args.Get("include_absolute_closest"), h.config.Geography.IncludeAbsoluteClosest),
		BackwardsCompatible:    boolArg(args.Get("backwards_compatible"), h.config.Geography.BackwardsCompatible),
	}
}

// boolArg treats any non-empty value other than "false" and "0" as true.
func boolArg(v string, def bool) bool {
	if v == "" {
		return def
	}
	return v != "false" && v != "0"
}
