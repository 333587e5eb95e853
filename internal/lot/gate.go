package lot

// Preconditions are the boolean gates that must all hold before a test
// run may start. The device and calibration states come from external
// collaborators; only their booleans matter here.
type Preconditions struct {
	LotSelected   bool
	PCBLotSet     bool
	SpecLoaded    bool
	Calibrated    bool
	DevicePresent bool
}

// Unmet lists the human-readable reasons the stand is not ready, empty
// when a run may start.
func (p Preconditions) Unmet() []string {
	var reasons []string
	if !p.PCBLotSet {
		reasons = append(reasons, "PCB lot not set")
	}
	if !p.LotSelected {
		reasons = append(reasons, "no lot selected")
	}
	if !p.SpecLoaded {
		reasons = append(reasons, "no test program loaded")
	}
	if !p.Calibrated {
		reasons = append(reasons, "calibration not loaded")
	}
	if !p.DevicePresent {
		reasons = append(reasons, "device not connected")
	}
	return reasons
}

// OK reports whether every precondition holds.
func (p Preconditions) OK() bool { return len(p.Unmet()) == 0 }
