package tracking

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Field is one named value logged on a session.
type Field struct {
	Name  string
	Value any
}

// MemorySession keeps everything logged on it.
type MemorySession struct {
	ID     string
	Config SessionConfig

	Params    []Field
	Others    []Field
	Metrics   []Field
	Tags      []string
	StartTime float64
	EndTime   float64
	Ended     bool

	mu sync.Mutex
}

// MemorySink is an in-memory Sink. Sessions are kept in opening order.
type MemorySink struct {
	mu       sync.Mutex
	sessions []*MemorySession
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// OpenSession implements Sink.
func (m *MemorySink) OpenSession(_ context.Context, config SessionConfig) (Session, error) {
	s := &MemorySession{ID: uuid.NewString(), Config: config}

	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	return s, nil
}

// Sessions returns the sessions opened so far.
func (m *MemorySink) Sessions() []*MemorySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*MemorySession(nil), m.sessions...)
}

// Param returns the value of the parameter name.
func (s *MemorySession) Param(name string) (any, bool) {
	return lookup(s.Params, name)
}

// Other returns the value of the auxiliary field name.
func (s *MemorySession) Other(name string) (any, bool) {
	return lookup(s.Others, name)
}

// Metric returns the last value logged for the metric name.
func (s *MemorySession) Metric(name string) (float64, bool) {
	v, ok := lookup(s.Metrics, name)
	if !ok {
		return 0, false
	}

	return v.(float64), true
}

func lookup(fields []Field, name string) (any, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Name == name {
			return fields[i].Value, true
		}
	}

	return nil, false
}

func (s *MemorySession) do(f func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Ended {
		return ErrSessionFinalized
	}

	f()

	return nil
}

// LogParameter implements Session.
func (s *MemorySession) LogParameter(_ context.Context, name string, value any) error {
	return s.do(func() { s.Params = append(s.Params, Field{name, value}) })
}

// LogOther implements Session.
func (s *MemorySession) LogOther(_ context.Context, name string, value any) error {
	return s.do(func() { s.Others = append(s.Others, Field{name, value}) })
}

// LogMetric implements Session.
func (s *MemorySession) LogMetric(_ context.Context, name string, value float64) error {
	return s.do(func() { s.Metrics = append(s.Metrics, Field{name, value}) })
}

// AddTags implements Session.
func (s *MemorySession) AddTags(_ context.Context, tags ...string) error {
	return s.do(func() { s.Tags = append(s.Tags, tags...) })
}

// SetStartTime implements Session.
func (s *MemorySession) SetStartTime(_ context.Context, epochSeconds float64) error {
	return s.do(func() { s.StartTime = epochSeconds })
}

// SetEndTime implements Session.
func (s *MemorySession) SetEndTime(_ context.Context, epochSeconds float64) error {
	return s.do(func() { s.EndTime = epochSeconds })
}

// End implements Session.
func (s *MemorySession) End(_ context.Context) error {
	return s.do(func() { s.Ended = true })
}
