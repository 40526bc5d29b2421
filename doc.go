// Package frontage serves the contents of an object storage bucket as a
// pseudo-static website.
//
// Incoming request paths are resolved against stored objects through a set
// of routing layers: a global layer, optional locale-scoped layers and
// optional sub-route layers, each with its own bucket, key prefix and
// trailing-slash policy. A miss in a layer falls back through a two-tier
// error-page chain; oversized objects are delivered through short-lived
// presigned URLs instead of inline bodies.
//
// The package contains the resolution engine only. HTTP wiring lives in
// the http subpackage, the S3 adapter in s3, and the redirect table and
// geolocation extensions in redirects and geo respectively.
package frontage
