// Package http wires the resolution engine, the redirect table and the
// geolocation service into a chi router.
//
// Route precedence mirrors registration order: redirect-table entries and
// the geolocation endpoints claim their exact paths first, and the proxy
// catch-all picks up everything else. The proxy accepts GET and POST
// identically; a POST body is ignored.
package http
