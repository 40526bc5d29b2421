package frontage

import (
	"log/slog"
	"sort"
	"strings"
)

// LocaleCookieName is the cookie consulted for the automatic locale switch.
const LocaleCookieName = "locale"

// RegistryConfig wires the global layer plus the locale and sub-route
// tables into a Registry. All values are read once at boot.
type RegistryConfig struct {
	Global    LayerConfig
	Locales   LocaleTable
	Subroutes SubrouteTable
	// SwitchablePaths are the entry paths on which the locale cookie may
	// trigger an automatic redirect. Defaults to just the root path.
	SwitchablePaths []string
}

// Registry holds every routing layer and decides which one owns an
// incoming path. It is built once at startup and read-only thereafter,
// so unsynchronized concurrent reads are safe.
type Registry struct {
	global     *Layer
	locales    map[string]*Layer
	subroutes  []subrouteEntry
	switchable map[string]struct{}
	claimed    map[string]string
	log        *slog.Logger
}

type subrouteEntry struct {
	prefix string
	layer  *Layer
}

// Match is the result of layer ownership resolution. Rel is the request
// path relative to the layer's mount point; Mount is the prefix to
// re-apply when rendering redirect locations.
type Match struct {
	Layer *Layer
	Rel   string
	Mount string
}

// NewRegistry constructs the global layer plus one layer per locale code
// and sub-route entry. A layer that cannot be constructed (typically a
// missing bucket) is logged and left out. Even a registry with no layers
// at all comes up, inert: redirect-table and extension routes keep
// serving, and every proxied path answers with the hardcoded error page.
func NewRegistry(store ObjectStore, cfg RegistryConfig, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{
		locales:    map[string]*Layer{},
		switchable: map[string]struct{}{},
		claimed:    map[string]string{},
		log:        log,
	}

	globalCfg := cfg.Global
	if globalCfg.Name == "" {
		globalCfg.Name = "global"
	}
	if len(globalCfg.Patterns) == 0 {
		globalCfg.Patterns = []string{"/", "/*"}
	}

	global, err := NewLayer(store, globalCfg, log)
	if err != nil {
		log.Warn("global layer disabled", "err", err)
	} else {
		r.claimPatterns(global)
		r.global = global
	}

	for _, code := range cfg.Locales.Codes() {
		layer, err := NewLayer(store, LayerConfig{
			Name:              "locale-" + code,
			Bucket:            globalCfg.Bucket,
			Prefix:            code,
			Policy:            globalCfg.Policy,
			TrailingSlashOnly: globalCfg.TrailingSlashOnly,
			RedirectCode:      globalCfg.RedirectCode,
			Patterns:          []string{"/" + code + "/", "/" + code + "/*"},
		}, log)
		if err != nil {
			log.Warn("locale layer disabled", "locale", code, "err", err)
			continue
		}
		if r.global != nil {
			if err := layer.SetFallback(r.global); err != nil {
				log.Warn("locale layer fallback rejected", "locale", code, "err", err)
			}
		}
		if !r.claimPatterns(layer) {
			continue
		}
		log.Info("instantiated locale layer", "locale", code)
		r.locales[code] = layer
	}

	for _, pattern := range sortedPatterns(cfg.Subroutes) {
		bucket := cfg.Subroutes[pattern]
		prefix := PatternPrefix(pattern)
		layer, err := NewLayer(store, LayerConfig{
			Name:              "subroute-" + strings.Trim(prefix, "/"),
			Bucket:            bucket,
			Prefix:            prefix,
			Policy:            globalCfg.Policy,
			TrailingSlashOnly: globalCfg.TrailingSlashOnly,
			RedirectCode:      globalCfg.RedirectCode,
			Patterns:          []string{pattern},
		}, log)
		if err != nil {
			log.Warn("subroute layer disabled", "pattern", pattern, "err", err)
			continue
		}
		if r.global != nil {
			if err := layer.SetFallback(r.global); err != nil {
				log.Warn("subroute layer fallback rejected", "pattern", pattern, "err", err)
			}
		}
		if !r.claimPatterns(layer) {
			continue
		}
		log.Info("instantiated subroute layer", "pattern", pattern, "bucket", bucket)
		r.subroutes = append(r.subroutes, subrouteEntry{prefix: prefix, layer: layer})
	}

	// Longest prefix first so /docs/api/* beats /docs/*.
	sort.Slice(r.subroutes, func(i, j int) bool {
		return len(r.subroutes[i].prefix) > len(r.subroutes[j].prefix)
	})

	paths := cfg.SwitchablePaths
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	for _, p := range paths {
		r.switchable[p] = struct{}{}
	}

	if r.global == nil && len(r.locales) == 0 && len(r.subroutes) == 0 {
		log.Warn("no routing layer could be constructed, proxy is inert")
	}

	return r
}

// claimPatterns records the layer's route patterns. First registration
// wins; a duplicate drops only the colliding pattern with a warning, not
// the whole layer. Only a layer with no pattern left is dropped.
func (r *Registry) claimPatterns(l *Layer) bool {
	claimed := 0
	for _, pattern := range l.Patterns() {
		norm := NormalizePattern(pattern)
		if owner, taken := r.claimed[norm]; taken {
			r.log.Warn("route pattern already claimed, skipping",
				"pattern", pattern, "layer", l.Name(), "owner", owner)
			continue
		}
		r.claimed[norm] = l.Name()
		claimed++
	}
	return claimed > 0
}

// Global returns the global layer, or nil when it is disabled.
func (r *Registry) Global() *Layer { return r.global }

// Locales returns the registered locale codes in sorted order.
func (r *Registry) Locales() []string {
	codes := make([]string, 0, len(r.locales))
	for code := range r.locales {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// OwnerOf resolves which layer should handle path. Sub-route prefixes
// match first (longest wins), then locale prefixes, then the global
// layer. The boolean is false when no layer owns the path (the global
// layer is disabled and nothing more specific matched).
func (r *Registry) OwnerOf(path string) (Match, bool) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	for _, sub := range r.subroutes {
		if path == sub.prefix || strings.HasPrefix(path, sub.prefix+"/") {
			rel := strings.TrimPrefix(strings.TrimPrefix(path, sub.prefix), "/")
			return Match{Layer: sub.layer, Rel: rel, Mount: sub.prefix}, true
		}
	}

	trimmed := strings.TrimPrefix(path, "/")
	if code, rest, found := strings.Cut(trimmed, "/"); found {
		if layer, ok := r.locales[code]; ok {
			return Match{Layer: layer, Rel: rest, Mount: "/" + code}, true
		}
	}

	if r.global == nil {
		return Match{}, false
	}
	return Match{Layer: r.global, Rel: trimmed, Mount: ""}, true
}

// LocaleSwitch reports whether a request to path carrying the given
// locale cookie value should be redirected into the locale subtree.
// It only ever fires on the configured switchable entry paths, so a user
// already inside a locale subtree cannot be bounced into a redirect loop.
func (r *Registry) LocaleSwitch(path, cookie string) (string, bool) {
	if cookie == "" {
		return "", false
	}
	if _, ok := r.locales[cookie]; !ok {
		return "", false
	}
	if _, ok := r.switchable[path]; !ok {
		return "", false
	}
	return "/" + cookie, true
}

func sortedPatterns(t SubrouteTable) []string {
	patterns := make([]string, 0, len(t))
	for p := range t {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}
