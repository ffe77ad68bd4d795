// Package logging provides structured logging for the inventory service.
//
// It wraps log/slog with JSON output for production, text output for
// development, and default service/version fields on every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets, tokens or password hashes.
package logging
