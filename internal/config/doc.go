// Package config loads gatherer configuration from YAML with ${VAR}
// environment expansion, an optional .env file, defaults and validation.
package config
