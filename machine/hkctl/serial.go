package hkctl

import (
	"fmt"
	"log/slog"

	"github.com/tarm/serial"
)

// OpenSerial connects to a controller on a local serial port.
func OpenSerial(name string, baud int, log *slog.Logger) (*Conn, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return NewConn(port, log), nil
}
