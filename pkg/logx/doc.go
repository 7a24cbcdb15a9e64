// Package logx wraps zerolog behind a small structured-logging API with
// ordered fields, a console writer for humans and an optional file sink.
package logx
