// Package logging provides the structured logger used across userconsole.
//
// It is a thin layer over Go's slog package: every record carries a
// subsystem attribute, messages use printf-style formatting, and errors are
// attached as a separate attribute.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Authenticated against %s", issuer)
//	logging.Debug("Gateway", "GET %s -> %d", url, status)
//	logging.Error("Session", err, "Token revocation failed")
//
// # Log files
//
// InitWithFile writes to a file rotated by lumberjack. The interactive
// console uses it so log lines never interleave with the prompt.
//
// # Security audit events
//
// Audit emits "SECURITY_AUDIT:" records for token lifecycle events (stored,
// refreshed, revoked, cleared). Only slot names and endpoints are logged,
// never token values.
package logging
