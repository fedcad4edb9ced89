package bus

// ConnectEvent is emitted when a socket is attached.
type ConnectEvent struct {
	// Resumed is the number of channels whose bundler was restarted
	// because they held buffered-but-unsent packets.
	Resumed int
}

// DisconnectEvent is emitted when the socket is lost or detached.
type DisconnectEvent struct{}

// StatsEvent is emitted per transmitted batch when Options.Stats is set.
type StatsEvent struct {
	Channel string
	Packets int
	Bytes   int
}

// EventHandler observes client lifecycle and telemetry events. Embed
// BaseEventHandler for no-op defaults and override what you need.
// Handlers are called synchronously from client goroutines.
type EventHandler interface {
	OnConnect(e ConnectEvent)
	OnDisconnect(e DisconnectEvent)
	OnError(err error)
	OnStats(e StatsEvent)
}

// BaseEventHandler provides no-op implementations of every EventHandler
// method.
type BaseEventHandler struct{}

// OnConnect does nothing.
func (BaseEventHandler) OnConnect(e ConnectEvent) {}

// OnDisconnect does nothing.
func (BaseEventHandler) OnDisconnect(e DisconnectEvent) {}

// OnError does nothing.
func (BaseEventHandler) OnError(err error) {}

// OnStats does nothing.
func (BaseEventHandler) OnStats(e StatsEvent) {}
