package qpack

// HTTP/3 SETTINGS parameters owned by QPACK (RFC 9204, Section 5).
// Settings negotiation itself happens outside this package; the values
// are injected here once known.
type SettingsParam uint64

const (
	SettingsQPACKMaxTableCapacity SettingsParam = 0x1
	SettingsQPACKBlockedStreams   SettingsParam = 0x7
)

// Settings carries the peer-declared QPACK limits. The zero value is
// the protocol default: no dynamic table, no blocked streams.
type Settings struct {
	MaxTableCapacity uint64
	BlockedStreams   uint64
}

func (s *Settings) SetValue(param SettingsParam, value uint64) {
	switch param {
	case SettingsQPACKMaxTableCapacity:
		s.MaxTableCapacity = value
	case SettingsQPACKBlockedStreams:
		s.BlockedStreams = value
	}
}

// Apply configures an encoder with the peer's declared limits.
func (s Settings) Apply(e *Encoder) error {
	e.SetMaximumBlockedStreams(s.BlockedStreams)
	return e.SetMaximumDynamicTableCapacity(s.MaxTableCapacity)
}
