// Package machine sends validated programs to the cutting machine.
package machine

import (
	"io"

	"github.com/mastercactapus/hkmacro/coord"
)

// An Adapter is a connection to the machine controller.
//
// ReadFrom streams program text line by line and returns once every line
// was acknowledged.
type Adapter interface {
	io.ReaderFrom
	io.Closer
}

// State is the last status report of the controller.
type State struct {
	Status string
	MPos   coord.Point
}
