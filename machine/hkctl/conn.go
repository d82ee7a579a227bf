// Package hkctl talks to the laser controller: directly over a serial port
// or through serial-port-json-server.
package hkctl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/hkmacro/machine"
)

// DefaultWindow is the controller's receive buffer in bytes.
const DefaultWindow = 128

// maxPending limits the number of unacknowledged lines.
const maxPending = 256

var (
	ErrAckTimeout   = errors.New("timed out waiting for acknowledgement")
	ErrDisconnected = errors.New("controller disconnected")
)

// LineError is returned when the controller rejects a line.
type LineError struct {
	// Line is 1-based, counting only the lines that were sent.
	Line int
	Text string
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (%s): %s", e.Line, e.Text, e.Msg)
}

type sentLine struct {
	n    int
	size int
	text string
}

// Conn streams lines to a controller that answers every line with "ok" or
// "error:<msg>". Lines are sent ahead as long as they fit in Window.
type Conn struct {
	rw  io.ReadWriter
	log *slog.Logger

	Window     int
	AckTimeout time.Duration

	acks     chan error
	closeCh  chan struct{}
	readDone chan struct{}
	readErr  error
	closed   sync.Once

	mx  sync.Mutex
	wMx sync.Mutex

	stateMx sync.Mutex
	last    machine.State
	state   chan machine.State

	pending  []sentLine
	inFlight int
}

var _ machine.Adapter = &Conn{}

// NewConn starts reading controller output from rw.
func NewConn(rw io.ReadWriter, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		rw:         rw,
		log:        log,
		Window:     DefaultWindow,
		AckTimeout: 30 * time.Second,
		acks:       make(chan error, maxPending),
		closeCh:    make(chan struct{}),
		readDone:   make(chan struct{}),
		state:      make(chan machine.State, 1),
	}
	go c.readLoop()
	return c
}

// Close aborts in-progress writes and closes rw if it is an io.Closer.
func (c *Conn) Close() (err error) {
	c.closed.Do(func() {
		close(c.closeCh)
		if closer, ok := c.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// State delivers status reports. Reports are dropped if nobody is
// listening.
func (c *Conn) State() <-chan machine.State { return c.state }

func (c *Conn) CurrentState() machine.State {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()
	return c.last
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	scan := bufio.NewScanner(c.rw)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		var ack error
		switch {
		case line == "":
			continue
		case line == "ok":
		case strings.HasPrefix(line, "error:"):
			ack = errors.New(strings.TrimSpace(strings.TrimPrefix(line, "error:")))
		case line[0] == '<':
			c.setState(line)
			continue
		default:
			c.log.Debug("controller", "line", line)
			continue
		}

		select {
		case c.acks <- ack:
		case <-c.closeCh:
			return
		}
	}
	c.readErr = scan.Err()
}

func (c *Conn) setState(line string) {
	c.stateMx.Lock()
	stat, err := parseStatus(c.last, line)
	if err != nil {
		c.stateMx.Unlock()
		c.log.Warn("parse status", "line", line, "err", err)
		return
	}
	c.last = stat
	c.stateMx.Unlock()

	select {
	case c.state <- stat:
	default:
	}
}

// next waits for the oldest pending line to be acknowledged.
func (c *Conn) next() error {
	var timeout <-chan time.Time
	if c.AckTimeout > 0 {
		t := time.NewTimer(c.AckTimeout)
		defer t.Stop()
		timeout = t.C
	}

	// acks that arrived before a disconnect still count
	select {
	case e := <-c.acks:
		return c.ack(e)
	default:
	}

	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	case <-c.readDone:
		select {
		case e := <-c.acks:
			return c.ack(e)
		default:
		}
		if c.readErr != nil {
			return fmt.Errorf("%w: %v", ErrDisconnected, c.readErr)
		}
		return ErrDisconnected
	case <-timeout:
		return ErrAckTimeout
	case e := <-c.acks:
		return c.ack(e)
	}
}

func (c *Conn) ack(e error) error {
	l := c.pending[0]
	c.pending = c.pending[1:]
	c.inFlight -= l.size
	if e != nil {
		return &LineError{Line: l.n, Text: l.text, Msg: e.Error()}
	}
	return nil
}

func (c *Conn) writeLine(n int, line []byte) error {
	for len(c.pending) > 0 && (c.inFlight+len(line) > c.Window || len(c.pending) >= maxPending) {
		err := c.next()
		if err != nil {
			return err
		}
	}

	c.mx.Lock()
	_, err := c.rw.Write(line)
	c.mx.Unlock()
	if err != nil {
		return err
	}
	c.pending = append(c.pending, sentLine{n: n, size: len(line), text: string(bytes.TrimSpace(line))})
	c.inFlight += len(line)
	return nil
}

// drain waits for every pending line and returns the first error.
func (c *Conn) drain() (err error) {
	for len(c.pending) > 0 {
		e := c.next()
		if err == nil {
			err = e
		}
		var lerr *LineError
		if e != nil && !errors.As(e, &lerr) {
			// nothing more will be acknowledged
			c.pending = nil
			c.inFlight = 0
			return err
		}
	}
	return err
}

// ReadFrom sends every non-blank line of r and returns after all of them
// were acknowledged. It stops at the first rejected line.
func (c *Conn) ReadFrom(r io.Reader) (n int64, err error) {
	c.wMx.Lock()
	defer c.wMx.Unlock()
	select {
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}

	scanner := bufio.NewScanner(r)
	var count int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		count++
		line = append(append([]byte(nil), line...), '\n')
		err = c.writeLine(count, line)
		if err != nil {
			break
		}
		n += int64(len(line))
	}
	if err == nil {
		err = scanner.Err()
	}

	derr := c.drain()
	if err == nil {
		err = derr
	}
	return n, err
}

// WriteString sends s and waits for it to be acknowledged.
func (c *Conn) WriteString(s string) error {
	_, err := c.ReadFrom(strings.NewReader(s))
	return err
}
