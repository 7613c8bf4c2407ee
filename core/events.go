package core

// Event is an external input for the UI loop, such as a window or terminal
// event.
type Event struct {
	// Target is the UI actor to notify, zero broadcasts to every UI actor
	Target ActorID

	// Payload is delivered as the message payload
	Payload any
}

// EventSource feeds external events into the UI loop. Poll must not block.
// Notify returns a channel that receives a value whenever new events may be
// available, so the loop can sleep while there is nothing to do. A nil
// channel means the source never wakes the loop on its own.
type EventSource interface {
	Poll() (Event, bool)
	Notify() <-chan struct{}
}

// ChanSource is an EventSource backed by a buffered channel.
type ChanSource struct {
	events chan Event
	notify chan struct{}
}

// NewChanSource returns a source that buffers up to buffer events.
func NewChanSource(buffer int) *ChanSource {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSource{
		events: make(chan Event, buffer),
		notify: make(chan struct{}, 1),
	}
}

// Post queues an event without blocking. It returns false when the buffer
// is full and the event was discarded.
func (s *ChanSource) Post(ev Event) bool {
	select {
	case s.events <- ev:
	default:
		return false
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Poll returns the next buffered event.
func (s *ChanSource) Poll() (Event, bool) {
	select {
	case ev := <-s.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Notify implements EventSource.
func (s *ChanSource) Notify() <-chan struct{} {
	return s.notify
}
