package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUSBPort(t *testing.T) {
	assert.True(t, isUSBPort("/dev/ttyUSB0"))
	assert.True(t, isUSBPort("/dev/ttyACM1"))
	assert.True(t, isUSBPort("/dev/cu.usbmodem14101"))
	assert.True(t, isUSBPort("COM3"))
	assert.False(t, isUSBPort("/dev/ttyS0"))
	assert.False(t, isUSBPort("/dev/tty.Bluetooth-Incoming-Port"))
}
