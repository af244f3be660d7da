package gdprAuth

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/gdprAuth/internal/audit"
)

// AuditEvent is one audit record. UserID always holds a pseudonymous id.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's background dispatcher.
type AuditSink = internalaudit.Sink

// AuditAction classifies what the audited request did.
type AuditAction = internalaudit.ActionType

// AuditCategory is the severity of an audit event.
type AuditCategory = internalaudit.Category

// Audit actions.
const (
	AuditCreated             = internalaudit.ActionCreated
	AuditUpdated             = internalaudit.ActionUpdated
	AuditDeleted             = internalaudit.ActionDeleted
	AuditViewed              = internalaudit.ActionViewed
	AuditRegister            = internalaudit.ActionRegister
	AuditConfirmEmail        = internalaudit.ActionConfirmEmail
	AuditLogin               = internalaudit.ActionLogin
	AuditRefresh             = internalaudit.ActionRefresh
	AuditLogout              = internalaudit.ActionLogout
	AuditInternalServerError = internalaudit.ActionInternalServerError
)

// Audit categories.
const (
	AuditSuccess = internalaudit.CategorySuccess
	AuditWarning = internalaudit.CategoryWarning
	AuditError   = internalaudit.CategoryError
)

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink logging through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink { return internalaudit.NewSlogSink(logger) }
