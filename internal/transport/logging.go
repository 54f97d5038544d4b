package transport

import (
	applog "reactive/internal/log"
)

// LoggingTransport implements Transport by logging event names at debug
// level. Used when no WebSocket server is wanted (tests, headless runs).
type LoggingTransport struct{}

var _ Transport = (*LoggingTransport)(nil)

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the event and always succeeds.
func (lt *LoggingTransport) Send(data any) error {
	if ev, ok := data.(Event); ok {
		applog.Debugf("Transport: event %q", ev.Event)
	}
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	return nil
}
