// Package config provides configuration loading and validation for
// frontage.
//
// The package handles YAML configuration files, environment variables,
// and CLI flags with automatic merging and validation using
// go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (FRONTAGE_ prefix)
//  4. CLI flags
//
// # Environment Variables
//
// All config keys map to environment variables with FRONTAGE_ prefix:
//   - server.port → FRONTAGE_SERVER_PORT
//   - proxy.bucket → FRONTAGE_PROXY_BUCKET
//   - s3.endpoint → FRONTAGE_S3_ENDPOINT
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and the www-strip toggle
//   - Proxy: bucket, key prefix, trailing-slash policy, redirect code,
//     locale and subroute tables, auto-switch entry paths
//   - Redirects: redirect table file and defaults
//   - Geography: geolocation endpoint route and toggles
//   - S3: object store endpoint, region and credentials
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// Note that the proxy redirect code is deliberately not validated here:
// an out-of-range code is demoted to 302 with a warning at layer
// construction instead of failing the boot.
package config
