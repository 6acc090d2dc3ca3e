// Package log provides secure logging built on the standard slog package.
//
// The SecureHandler masks sensitive values before they reach any output:
//   - HTTP credentials (Authorization, Cookie, X-Api-Key)
//   - the field encryption secret and other keys
//   - URLs carrying user:password credentials, such as a Redis broker URL
//   - values that look like bearer tokens, JWTs or private keys
//
// Scan payloads and tool output regularly contain session cookies of the
// assessed application, so masking applies at every level, including debug.
//
// # Usage
//
//	logger, err := log.New(log.Options{Level: "info", Format: "json", File: "/var/log/byteforge.log"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Logger)
package log
