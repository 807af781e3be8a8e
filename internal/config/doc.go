// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config.yaml. It provides typed
// access to the settings the server, the task runner and the CLI need.
package config
