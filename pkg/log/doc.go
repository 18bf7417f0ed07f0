// Package log provides the structured logging abstraction used across
// envpool modules.
//
// The core components accept the [Logger] interface so they can run with a
// no-op logger in tests and with any structured backend in applications.
// [NewZerologAdapter] provides the default console backend.
package log
