// Package logger wraps zap for the deployer binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and adjustment,
//   - leveled helpers (Infof, WarnKV, ErrorKV, etc.).
//
// Every service takes a context and pulls its logger from it, so run-scoped
// fields such as the run id follow the call chain without extra parameters.
package logger
