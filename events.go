package main

import "sync"

// EventType tags a progress event with the stage transition it reports.
type EventType string

const (
	EventStage1Start    EventType = "stage1_start"
	EventStage1Complete EventType = "stage1_complete"
	EventStage2Start    EventType = "stage2_start"
	EventStage2Complete EventType = "stage2_complete"
	EventStage3Start    EventType = "stage3_start"
	EventStage3Complete EventType = "stage3_complete"
	EventTitleComplete  EventType = "title_complete"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// Event is one entry of the ordered progress sequence a deliberation emits.
// The orchestrator only guarantees the logical sequence and payload shapes;
// wire framing (SSE or anything else) is the transport layer's business.
type Event struct {
	Type     EventType   `json:"type"`
	Data     interface{} `json:"data,omitempty"`
	Metadata *Metadata   `json:"metadata,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Terminal reports whether no further events may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Publisher delivers a deliberation's events to a single subscriber, in
// order. After a terminal event the stream is closed and later publishes are
// dropped. A nil *Publisher discards everything, which is how non-streaming
// callers run the same pipeline.
type Publisher struct {
	mu   sync.Mutex
	ch   chan Event
	done bool
}

// NewPublisher creates a publisher. The buffer is sized for a full
// deliberation so the pipeline never blocks on a slow subscriber draining
// after the fact.
func NewPublisher() *Publisher {
	return &Publisher{ch: make(chan Event, 32)}
}

// Publish appends an event to the stream. Publishing a terminal event closes
// the stream; anything published after that is dropped.
func (p *Publisher) Publish(e Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.ch <- e
	if e.Terminal() {
		p.done = true
		close(p.ch)
	}
}

// Error publishes a terminal error event with a human-readable message.
func (p *Publisher) Error(message string) {
	p.Publish(Event{Type: EventError, Message: message})
}

// Complete publishes the terminal completion marker.
func (p *Publisher) Complete() {
	p.Publish(Event{Type: EventComplete})
}

// Events returns the subscriber side of the stream. It is closed after the
// terminal event.
func (p *Publisher) Events() <-chan Event {
	return p.ch
}

// Drain collects every remaining event, blocking until the stream ends.
// This is the buffered delivery mode; incremental callers range over
// Events() instead.
func (p *Publisher) Drain() []Event {
	var events []Event
	for e := range p.ch {
		events = append(events, e)
	}
	return events
}
