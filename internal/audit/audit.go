package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ActionType classifies what the audited request did.
type ActionType uint8

const (
	ActionCreated ActionType = iota
	ActionUpdated
	ActionDeleted
	ActionViewed
	ActionRegister
	ActionConfirmEmail
	ActionLogin
	ActionRefresh
	ActionLogout
	ActionInternalServerError
)

var actionNames = [...]string{
	"created", "updated", "deleted", "viewed", "register",
	"confirm_email", "login", "refresh", "logout", "internal_server_error",
}

func (a ActionType) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

func (a ActionType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Category is the severity of an audit event.
type Category uint8

const (
	CategorySuccess Category = iota
	CategoryWarning
	CategoryError
)

func (c Category) String() string {
	switch c {
	case CategorySuccess:
		return "success"
	case CategoryWarning:
		return "warning"
	case CategoryError:
		return "error"
	default:
		return "unknown"
	}
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Event is one audit record. UserID always holds a pseudonymous identifier.
type Event struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Category    Category   `json:"category"`
	Action      ActionType `json:"action"`
	UserID      string     `json:"user_id,omitempty"`
	EntityName  string     `json:"entity_name,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	Description string     `json:"description,omitempty"`
	IP          string     `json:"ip,omitempty"`
	TraceID     string     `json:"trace_id,omitempty"`
}

// Stamp fills ID and Timestamp when unset.
func (e *Event) Stamp(now time.Time) {
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.Timestamp), ulid.DefaultEntropy()).String()
	}
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// SlogSink logs events as structured records at a level derived from Category.
type SlogSink struct {
	Logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	switch event.Category {
	case CategoryWarning:
		level = slog.LevelWarn
	case CategoryError:
		level = slog.LevelError
	}
	s.Logger.LogAttrs(ctx, level, "audit",
		slog.String("audit_id", event.ID),
		slog.String("action", event.Action.String()),
		slog.String("category", event.Category.String()),
		slog.String("user_id", event.UserID),
		slog.String("entity_name", event.EntityName),
		slog.String("entity_id", event.EntityID),
		slog.String("description", event.Description),
		slog.String("ip", event.IP),
		slog.String("trace_id", event.TraceID),
	)
}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
