// Package log provides the logging abstraction used across wirebus.
//
// The bus core never logs directly to a concrete backend; it accepts a
// Logger and defaults to a no-op implementation. A zerolog adapter is
// provided for applications that want real output:
//
//	logger := log.NewZerologAdapter()
//	client, err := bus.NewClient(opts, bus.WithLogger(logger))
//
// Any other backend can be plugged in by implementing the four-method
// Logger interface.
package log
