package remote

// Observer receives connection lifecycle events. Callbacks run on server
// goroutines and must not block; nil observers are allowed.
type Observer interface {
	ClientConnected(addr string)
	ClientDisconnected(addr string)
	CommandReceived(addr, line string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ClientConnected(string)         {}
func (NopObserver) ClientDisconnected(string)      {}
func (NopObserver) CommandReceived(string, string) {}
