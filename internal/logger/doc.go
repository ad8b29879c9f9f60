// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services receive a context and pull the logger out of it, so a name or a
// set of key/value pairs attached once (for example the alarm id) follows
// every log line written further down the call chain.
package logger
