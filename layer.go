package frontage

import (
	"context"
	"fmt"
	"log/slog"
)

// LayerConfig describes one routing layer. Every configuration key the
// layer honors is an explicit field here; there is no dynamic attribute
// binding.
type LayerConfig struct {
	Name              string
	Bucket            string
	Prefix            string
	Policy            SlashPolicy
	TrailingSlashOnly bool
	// RedirectCode is the status used for canonicalization redirects.
	// Values outside the open (300, 400) interval are rejected with a
	// warning and the layer falls back to DefaultRedirectCode.
	RedirectCode int
	// Patterns are the route patterns this layer claims. Registration
	// against other layers is arbitrated by the Registry.
	Patterns []string
}

// Layer is a named resolution scope: the global site, one locale subtree,
// or one sub-route. Immutable after construction except for the fallback
// link, which may be set once.
type Layer struct {
	name         string
	resolver     *Resolver
	redirectCode int
	patterns     []string
	fallback     *Layer
	log          *slog.Logger
}

// NewLayer builds a layer and its resolver. A missing bucket is a
// configuration error; the caller is expected to log it and leave the
// layer out rather than abort the process.
func NewLayer(store ObjectStore, cfg LayerConfig, log *slog.Logger) (*Layer, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("layer %s: %w: no bucket provided", cfg.Name, ErrConfiguration)
	}

	resolver, err := NewResolver(store, ResolverConfig{
		Bucket:            cfg.Bucket,
		Prefix:            cfg.Prefix,
		Policy:            cfg.Policy,
		TrailingSlashOnly: cfg.TrailingSlashOnly,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", cfg.Name, err)
	}

	code := cfg.RedirectCode
	if code == 0 {
		code = DefaultRedirectCode
	} else if !ValidRedirectCode(code) {
		log.Warn("ignoring redirect code outside of range",
			"layer", cfg.Name, "code", code)
		code = DefaultRedirectCode
	}

	return &Layer{
		name:         cfg.Name,
		resolver:     resolver,
		redirectCode: code,
		patterns:     append([]string(nil), cfg.Patterns...),
		log:          log,
	}, nil
}

func (l *Layer) Name() string       { return l.name }
func (l *Layer) RedirectCode() int  { return l.redirectCode }
func (l *Layer) Patterns() []string { return l.patterns }
func (l *Layer) Fallback() *Layer   { return l.fallback }

// Resolver exposes the layer's content resolver for fixed-key lookups.
func (l *Layer) Resolver() *Resolver { return l.resolver }

// SetFallback links the layer to the one its error pages delegate to.
// It may be called at most once, and the link must not form a cycle.
func (l *Layer) SetFallback(fb *Layer) error {
	if l.fallback != nil {
		return fmt.Errorf("layer %s: %w: fallback already set", l.name, ErrConfiguration)
	}
	for cur := fb; cur != nil; cur = cur.fallback {
		if cur == l {
			return fmt.Errorf("layer %s: %w: fallback cycle", l.name, ErrConfiguration)
		}
	}
	l.fallback = fb
	return nil
}

// Resolve answers path within this layer's scope.
func (l *Layer) Resolve(ctx context.Context, path string, checkCanonical bool) (*Resolution, error) {
	return l.resolver.Resolve(ctx, path, checkCanonical)
}
