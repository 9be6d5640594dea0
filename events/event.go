package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
	// Record renders the event into its append-only audit form.
	Record() *Record
}

// Record is the serialised audit form consumed by external indexers. Every
// record carries a unique identifier so downstream consumers can dedupe.
type Record struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func newRecord(eventType string, attrs map[string]string) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Type:       eventType,
		Attributes: attrs,
	}
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter buffers emitted records in order. Tests and in-process
// indexers read them back through Records.
type MemoryEmitter struct {
	mu      sync.Mutex
	records []*Record
}

func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	m.mu.Lock()
	m.records = append(m.records, evt.Record())
	m.mu.Unlock()
}

// Records returns a snapshot of everything emitted so far.
func (m *MemoryEmitter) Records() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Record(nil), m.records...)
}

// LogEmitter writes every event to the structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	record := evt.Record()
	attrs := make([]any, 0, 2+2*len(record.Attributes))
	attrs = append(attrs, "eventId", record.ID)
	for k, v := range record.Attributes {
		attrs = append(attrs, k, v)
	}
	l.logger.Info(record.Type, attrs...)
}

// MultiEmitter fans events out to several emitters in registration order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
