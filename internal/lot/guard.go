package lot

import "fmt"

// ChecksumMismatch is the advisory raised when the spec active at test
// time differs from the checksum frozen at lot creation. It never blocks
// a run: the operator is warned and the test proceeds.
type ChecksumMismatch struct {
	LotName        string
	LotChecksum    string // "" when the lot was created without a spec
	ActiveChecksum string // "" when no spec is currently loaded
}

// Warning renders the operator-facing message.
func (m *ChecksumMismatch) Warning() string {
	return fmt.Sprintf(
		"warning: test configuration checksum %s does not match the checksum recorded for lot %s (%s)",
		orNone(m.ActiveChecksum), m.LotName, orNone(m.LotChecksum))
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

// CheckSpecChecksum compares the active spec checksum against the lot's
// frozen one. Equality is exact content equality; a one-sided missing
// checksum also mismatches. Returns nil when the revisions agree.
func (l *Lot) CheckSpecChecksum(active string) *ChecksumMismatch {
	if l.Checksum == active {
		return nil
	}
	return &ChecksumMismatch{
		LotName:        l.Name,
		LotChecksum:    l.Checksum,
		ActiveChecksum: active,
	}
}
