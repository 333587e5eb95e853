// Package rf provides the shared sample model for captured S-parameter traces.
package rf

import (
	"fmt"
	"strings"
)

// Parameter identifies which S-parameter a trace or rule refers to.
type Parameter string

// Parameter constants
const (
	ParamS11 Parameter = "S11"
	ParamS21 Parameter = "S21"
)

// ParseParameter normalises a parameter string. Comparison is
// case-insensitive; anything that is not S11 selects the S21 trace,
// matching the evaluation contract.
func ParseParameter(s string) Parameter {
	if strings.EqualFold(s, string(ParamS11)) {
		return ParamS11
	}
	return ParamS21
}

// Sample is one captured frequency-domain measurement point.
// Within one trace frequencies are strictly increasing.
type Sample struct {
	Frequency int64   `json:"frequency"` // Hz
	Gain      float64 `json:"gain"`      // dB
}

// FormatFrequency renders a frequency in Hz with a human-readable unit.
func FormatFrequency(hz int64) string {
	switch {
	case hz >= 1_000_000_000:
		return fmt.Sprintf("%.4g GHz", float64(hz)/1e9)
	case hz >= 1_000_000:
		return fmt.Sprintf("%.4g MHz", float64(hz)/1e6)
	case hz >= 1_000:
		return fmt.Sprintf("%.4g kHz", float64(hz)/1e3)
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}
