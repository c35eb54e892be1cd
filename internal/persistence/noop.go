package persistence

import "github.com/talgya/meme-market/internal/settle"

// NoopSink discards day logs. Used by tests and the in-memory mode.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) Append(_ *settle.DayLog) error { return nil }
