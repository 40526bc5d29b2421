package frontage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// OverflowSize is the largest object length served as an inline body.
// The end-to-end transport ceiling sits near 6 MB, so anything above
// 4.5 MB is delivered through a presigned URL instead.
const OverflowSize = int64(4.5 * 1024 * 1024)

// PresignTTL is the lifetime of signed URLs issued for oversized objects.
const PresignTTL = 60 * time.Second

// placeholderKeys is a historical artifact: a publishing pipeline once
// left a zero-length decoy object at these keys. A zero-length hit on any
// of them is treated as a miss so the empty page is never served.
var placeholderKeys = map[string]struct{}{
	"soap":            {},
	"soap/":           {},
	"soap.html":       {},
	"soap/index.html": {},
}

// ResolutionKind discriminates the ways a resolution can answer a request.
type ResolutionKind int

const (
	// ResolutionObject carries an inline body with passthrough metadata.
	ResolutionObject ResolutionKind = iota
	// ResolutionSignedURL carries a presigned URL; the caller must answer
	// with a 303 and never a cacheable redirect code.
	ResolutionSignedURL
	// ResolutionRedirect asks the caller to redirect to Location,
	// preserving the request's query string. Location is relative to the
	// resolver's mount point.
	ResolutionRedirect
)

// Resolution is the typed outcome of resolving one request path.
type Resolution struct {
	Kind     ResolutionKind
	Object   *ResolvedObject
	Location string
}

// ResolverConfig configures a Resolver. Bucket is required; everything
// else has a usable zero value.
type ResolverConfig struct {
	Bucket string
	// Prefix is joined in front of every candidate key. Leading and
	// trailing slashes are stripped at construction.
	Prefix string
	Policy SlashPolicy
	// TrailingSlashOnly narrows candidate probing to {path} and
	// {path}.html, for deployments that publish every logical directory
	// as a flat .html file as well.
	TrailingSlashOnly bool
}

// Resolver maps request paths to stored objects for a single bucket and
// key prefix. Safe for concurrent use.
type Resolver struct {
	store     ObjectStore
	bucket    string
	prefix    string
	policy    SlashPolicy
	slashOnly bool
	log       *slog.Logger
}

func NewResolver(store ObjectStore, cfg ResolverConfig, log *slog.Logger) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("new resolver: %w: no object store", ErrConfiguration)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new resolver: %w: no bucket", ErrConfiguration)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = SlashRedirect
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("new resolver: %w: invalid slash policy %q", ErrConfiguration, cfg.Policy)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		store:     store,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		policy:    policy,
		slashOnly: cfg.TrailingSlashOnly,
		log:       log,
	}, nil
}

// Bucket returns the bucket this resolver reads from.
func (r *Resolver) Bucket() string { return r.bucket }

// Resolve determines which stored object answers path, if any.
//
// Candidate keys are probed in a fixed order and the first existing object
// wins. With checkCanonical set (and trailing-slash-only probing in
// effect), a total miss triggers a secondary {path}/index.html probe; a
// hit there yields a redirect to the slash-suffixed canonical form rather
// than content at the non-canonical path.
//
// A miss returns ErrNotFound. Store failures other than not-found are
// logged and degraded to ErrNotFound so a flaky lookup cannot abort the
// request.
func (r *Resolver) Resolve(ctx context.Context, path string, checkCanonical bool) (*Resolution, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return r.retrieve(ctx, "index.html")
	}

	var candidates []string
	canonicalBase := ""

	switch {
	case strings.HasSuffix(path, "/"):
		if r.policy == SlashRedirect {
			return &Resolution{
				Kind:     ResolutionRedirect,
				Location: "/" + strings.TrimSuffix(path, "/"),
			}, nil
		}
		path = strings.TrimSuffix(path, "/")
		candidates = []string{path, path + "/index.html", path + ".html"}

	case r.slashOnly:
		candidates = []string{path, path + ".html"}
		if checkCanonical {
			canonicalBase = path
		}

	default:
		candidates = []string{path, path + "/index.html", path + ".html"}
	}

	for _, key := range candidates {
		res, err := r.retrieve(ctx, key)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if canonicalBase != "" {
		if _, err := r.retrieve(ctx, canonicalBase+"/index.html"); err == nil {
			return &Resolution{
				Kind:     ResolutionRedirect,
				Location: "/" + canonicalBase + "/",
			}, nil
		}
	}

	return nil, ErrNotFound
}

// Retrieve fetches a single key (under the resolver's prefix) without any
// candidate probing. Used for error pages and other fixed-key lookups.
func (r *Resolver) Retrieve(ctx context.Context, key string) (*Resolution, error) {
	return r.retrieve(ctx, key)
}

func (r *Resolver) retrieve(ctx context.Context, key string) (*Resolution, error) {
	fullKey := key
	if r.prefix != "" {
		fullKey = r.prefix + "/" + key
	}

	obj, err := r.store.Get(ctx, r.bucket, fullKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		// Degrade transport failures to a miss so the request still
		// terminates in a deterministic response.
		r.log.Warn("object store lookup failed",
			"bucket", r.bucket, "key", fullKey, "err", err)
		return nil, ErrNotFound
	}

	if obj.Length == 0 {
		if _, bad := placeholderKeys[fullKey]; bad {
			r.log.Info("ignoring placeholder object", "key", fullKey)
			_ = obj.Body.Close()
			return nil, ErrNotFound
		}
	}

	if obj.Length > OverflowSize {
		_ = obj.Body.Close()
		signed, err := r.store.Presign(ctx, r.bucket, fullKey, PresignTTL)
		if err != nil {
			r.log.Warn("presign failed", "bucket", r.bucket, "key", fullKey, "err", err)
			return nil, ErrNotFound
		}
		r.log.Info("serving oversized object via signed URL",
			"key", fullKey, "length", obj.Length)
		return &Resolution{
			Kind:   ResolutionSignedURL,
			Object: &ResolvedObject{Key: fullKey, SignedURL: signed},
		}, nil
	}

	body, err := io.ReadAll(obj.Body)
	closeErr := obj.Body.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		r.log.Warn("reading object body failed",
			"bucket", r.bucket, "key", fullKey, "err", err)
		return nil, ErrNotFound
	}

	return &Resolution{
		Kind: ResolutionObject,
		Object: &ResolvedObject{
			Key:          fullKey,
			Body:         body,
			ContentType:  obj.ContentType,
			CacheControl: obj.CacheControl,
			Expires:      obj.Expires,
			LastModified: obj.LastModified,
		},
	}, nil
}
