// Package device locates the analyzer's serial interface. The stand
// only needs presence detection before a run; sweep acquisition itself
// happens out of process and arrives as trace files.
package device

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// ListPorts returns the serial port names visible on this host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Present reports whether an analyzer port is available. With a
// preferred port name it requires that exact port; otherwise any
// USB-style serial port counts.
func Present(preferred string) (bool, error) {
	ports, err := ListPorts()
	if err != nil {
		return false, err
	}
	for _, p := range ports {
		if preferred != "" {
			if p == preferred {
				return true, nil
			}
			continue
		}
		if isUSBPort(p) {
			return true, nil
		}
	}
	return false, nil
}

// isUSBPort filters out onboard UARTs; analyzers enumerate as USB CDC
// devices on every supported platform.
func isUSBPort(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "usb") ||
		strings.Contains(lower, "acm") ||
		strings.HasPrefix(name, "COM")
}
