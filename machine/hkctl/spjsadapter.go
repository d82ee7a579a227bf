package hkctl

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mastercactapus/hkmacro/machine"
	"github.com/mastercactapus/hkmacro/spjs"
)

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "hk_" + strconv.FormatInt(id, 36)
}

// batchSize is the number of lines per sendjson command.
const batchSize = 100

// ErrWipedQueue is returned if the server drops queued lines.
var ErrWipedQueue = errors.New("wiped queue")

// SPJSAdapter streams programs through serial-port-json-server.
type SPJSAdapter struct {
	sp   *spjs.Client
	port string
	baud int
	log  *slog.Logger

	cmds    chan adapterMessage
	waiting map[string]chan error
	closeCh chan struct{}
	closed  sync.Once

	// owned by loop
	partial  string
	sent     []string
	acked    int
	rejected error
}

var _ machine.Adapter = &SPJSAdapter{}

type adapterMessage struct {
	spjs.JSON
	wait chan error

	// first starts a new program
	first bool
}

// NewSPJSAdapter opens port on the server, if it is not already open.
func NewSPJSAdapter(sp *spjs.Client, port string, baud int, log *slog.Logger) *SPJSAdapter {
	if log == nil {
		log = slog.Default()
	}
	adapter := &SPJSAdapter{
		sp:      sp,
		port:    port,
		baud:    baud,
		log:     log.With("port", port),
		waiting: make(map[string]chan error, 100),
		cmds:    make(chan adapterMessage),
		closeCh: make(chan struct{}),
	}
	go adapter.loop()

	return adapter
}

func (adapter *SPJSAdapter) fail(err error) {
	for key, ch := range adapter.waiting {
		ch <- err
		delete(adapter.waiting, key)
	}
	adapter.sent = nil
}

// controllerOutput splits port output into lines and matches "ok" and
// "error:" replies against the sent lines.
func (adapter *SPJSAdapter) controllerOutput(data string) {
	adapter.partial += data
	for {
		i := strings.IndexByte(adapter.partial, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimSpace(adapter.partial[:i])
		adapter.partial = adapter.partial[i+1:]

		switch {
		case line == "ok":
			if len(adapter.sent) > 0 {
				adapter.sent = adapter.sent[1:]
			}
			adapter.acked++
		case strings.HasPrefix(line, "error:"):
			lerr := &LineError{
				Line: adapter.acked + 1,
				Msg:  strings.TrimSpace(strings.TrimPrefix(line, "error:")),
			}
			if len(adapter.sent) > 0 {
				lerr.Text = adapter.sent[0]
			}
			adapter.log.Warn("controller rejected line", "line", lerr.Line, "text", lerr.Text, "err", lerr.Msg)
			adapter.rejected = lerr
			adapter.fail(lerr)
		case line != "":
			adapter.log.Debug("controller", "line", line)
		}
	}
}

func (adapter *SPJSAdapter) loop() {
	for {
		select {
		case <-adapter.closeCh:
			adapter.fail(io.ErrClosedPipe)
			return
		case resp := <-adapter.sp.Messages():
			switch msg := resp.(type) {
			case *spjs.DataFrame:
				if msg.Port == "" || msg.Port == adapter.port {
					adapter.controllerOutput(msg.Data)
				}
			case *spjs.ErrorMessage:
				adapter.log.Error("spjs", "err", msg.Error)
			case *spjs.CmdStatus:
				switch msg.Cmd {
				case "WipedQueue":
					adapter.fail(ErrWipedQueue)
				case "Complete":
					if adapter.waiting[msg.ID] != nil {
						adapter.waiting[msg.ID] <- nil
						delete(adapter.waiting, msg.ID)
					}
				}
			case *spjs.SerialPortList:
				for _, port := range msg.SerialPorts {
					if port.Name != adapter.port || port.IsOpen {
						continue
					}
					adapter.log.Info("opening port")
					go func() {
						err := adapter.sp.WriteString("open " + adapter.port + " " + strconv.Itoa(adapter.baud) + " default")
						if err != nil {
							adapter.log.Error("open port", "err", err)
						}
					}()
				}
			}
		case msg := <-adapter.cmds:
			if msg.first {
				adapter.sent, adapter.acked, adapter.rejected = nil, 0, nil
			}
			if adapter.rejected != nil {
				// the rest of a rejected program is not sent
				msg.wait <- adapter.rejected
				continue
			}
			err := adapter.sp.SendJSON(msg.JSON)
			if err != nil {
				msg.wait <- err
				continue
			}
			for _, d := range msg.Data {
				adapter.sent = append(adapter.sent, strings.TrimSpace(d.Data))
			}
			adapter.waiting[msg.Data[len(msg.Data)-1].ID] = msg.wait
		}
	}
}

// ReadFrom sends r in batches and waits for the last line to complete. A
// line the controller rejects fails it with a *LineError.
func (adapter *SPJSAdapter) ReadFrom(r io.Reader) (n int64, err error) {
	scan := bufio.NewScanner(r)
	var waits []chan error
	for {
		var j spjs.JSON
		j.Port = adapter.port
		for scan.Scan() {
			line := strings.TrimSpace(scan.Text())
			if line == "" {
				continue
			}
			n += int64(len(line) + 1)
			j.Data = append(j.Data, spjs.Data{
				Data: line + "\n",
				ID:   nextID(),
			})
			if len(j.Data) == batchSize {
				break
			}
		}
		if len(j.Data) == 0 {
			break
		}
		wait := make(chan error, 1)
		select {
		case adapter.cmds <- adapterMessage{JSON: j, wait: wait, first: len(waits) == 0}:
		case <-adapter.closeCh:
			return n, io.ErrClosedPipe
		}
		waits = append(waits, wait)
	}
	if err = scan.Err(); err != nil {
		return n, err
	}

	for _, wait := range waits {
		if err = <-wait; err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close stops the adapter and the underlying client.
func (adapter *SPJSAdapter) Close() (err error) {
	adapter.closed.Do(func() {
		close(adapter.closeCh)
		err = adapter.sp.Close()
	})
	return err
}
