package loginguard

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/loginguard/internal/audit"
)

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink buffering up to buffer events. Read
// them from Events.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing to w. Writes are serialized.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// emitAudit hands e to the dispatcher, which stamps it from ctx.
func (g *Guard) emitAudit(ctx context.Context, e AuditEvent) {
	g.audit.Emit(ctx, e)
}
