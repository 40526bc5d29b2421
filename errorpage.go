package frontage

import (
	"context"
	"net/http"
)

// ErrorKind selects which error page family to resolve.
type ErrorKind int

const (
	ErrorNotFound ErrorKind = iota
	ErrorServerError
)

// StatusCode is the status forced onto the rendered error page,
// regardless of the underlying object's own metadata.
func (k ErrorKind) StatusCode() int {
	if k == ErrorServerError {
		return http.StatusInternalServerError
	}
	return http.StatusNotFound
}

// FallbackText is the hardcoded plain-text body used when no error page
// object exists anywhere in the fallback chain.
func (k ErrorKind) FallbackText() string {
	if k == ErrorServerError {
		return "Internal Server Error"
	}
	return "Page Not Found"
}

func (k ErrorKind) pageBase() string {
	if k == ErrorServerError {
		return "500"
	}
	return "404"
}

// ErrorPage resolves the error page for kind, walking the layer's
// fallback chain: {kind}/index.html in the layer's own bucket/prefix,
// then {kind}.html, then the same pair in the fallback layer, and so on.
// It returns nil when no chain member has a page, in which case the
// caller renders FallbackText. Every lookup failure is treated as a
// miss; this method cannot fail.
func (l *Layer) ErrorPage(ctx context.Context, kind ErrorKind) *ResolvedObject {
	base := kind.pageBase()
	for cur := l; cur != nil; cur = cur.fallback {
		for _, key := range []string{base + "/index.html", base + ".html"} {
			res, err := cur.resolver.retrieve(ctx, key)
			if err != nil {
				continue
			}
			// An oversized error page cannot be delivered with a forced
			// status; treat it like a miss.
			if res.Kind != ResolutionObject {
				continue
			}
			return res.Object
		}
	}
	return nil
}
