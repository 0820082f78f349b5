// Package logging provides structured logging for Estufa Core.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version). Components receive a child logger
// built with With("component", ...).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log broker passwords, bearer tokens or the JWT secret.
package logging
