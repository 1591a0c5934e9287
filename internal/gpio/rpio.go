package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioConn drives the Raspberry Pi header through /dev/gpiomem.
type rpioConn struct{}

// OpenRPIO memory-maps the GPIO range and returns a connection to the
// physical pins.
func OpenRPIO() (Conn, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return &rpioConn{}, nil
}

func (*rpioConn) SetOutput(pin int) { rpio.Pin(pin).Output() }
func (*rpioConn) SetInput(pin int)  { rpio.Pin(pin).Input() }

func (*rpioConn) Write(pin int, high bool) {
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

func (*rpioConn) Read(pin int) bool { return rpio.Pin(pin).Read() == rpio.High }

func (*rpioConn) Close() error { return rpio.Close() }
