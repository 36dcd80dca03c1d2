// Package config loads application configuration from AUTH_* environment
// variables with sensible defaults and validates it before the services start.
package config
