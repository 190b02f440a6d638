// Package logx is scriptbot's zerolog wrapper: value-type loggers with
// field helpers, a console sink with short callers, an optional JSON file
// sink, and runtime reconfiguration for config hot reload.
package logx
