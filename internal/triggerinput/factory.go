package triggerinput

import (
	"go.bug.st/serial"
)

func (m Mode) serialMode() *serial.Mode {
	mode := &serial.Mode{BaudRate: m.BaudRate, DataBits: m.DataBits}
	switch m.Parity {
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}
	switch m.StopBits {
	case TwoStopBits:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	return mode
}

// NewRealMux opens a physical trigger port at path and wraps it in a Mux.
func NewRealMux(path string, mode Mode) (*Mux[serial.Port], error) {
	port, err := serial.Open(path, mode.serialMode())
	if err != nil {
		return nil, err
	}
	return New[serial.Port](port), nil
}
