// Package config loads and validates the editor service configuration.
//
// Configuration is merged from three sources in increasing precedence:
// built-in defaults, layered JSON files, and FLOWKIT_* environment
// variables. SafeConfig wraps the result for concurrent readers; updates
// are validated before they replace the current configuration.
package config
