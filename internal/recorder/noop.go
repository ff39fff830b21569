package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordEvent(_ *VaultEvent) error      { return nil }
func (n *NoopRecorder) RecordRateChange(_ *RateChange) error { return nil }
func (n *NoopRecorder) Close() error                         { return nil }
