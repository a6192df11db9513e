package replay

// Status is the state of a replayed thread.
type Status string

const (
	// StatusQueued indicates the thread has not started yet.
	StatusQueued Status = "queued"
	// StatusRunning indicates the thread is executing blocks.
	StatusRunning Status = "running"
	// StatusDone indicates the thread finished its executions.
	StatusDone Status = "done"
	// StatusError indicates the thread was stopped by an error.
	StatusError Status = "error"
)

// Event reports replay progress of one thread.
type Event struct {
	Thread uint64
	Status Status
	Done   uint64 // executions completed by the thread
	Total  uint64 // executions scheduled for the thread
	Err    error
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

// OnEvent implements ProgressSink.
func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopProgress struct{}

func (nopProgress) OnEvent(Event) {}
