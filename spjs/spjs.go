// Package spjs is a client for serial-port-json-server, which exposes serial
// ports over a websocket.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client keeps a websocket connection to the server open, reconnecting as
// needed.
type Client struct {
	url string
	log *slog.Logger

	// Retry is the delay between connection attempts.
	Retry time.Duration

	outgoing chan message
	incoming chan interface{}

	closeOnce sync.Once
	closeCh   chan struct{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

// DataFrame is raw output of a serial port.
type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

// CmdStatus reports queue progress of sent lines.
type CmdStatus struct {
	Cmd        string
	QueueCount int    `json:"QCnt"`
	Port       string `json:"P"`
	ID         string `json:"Id"`
}

type ErrorMessage struct {
	Error string
}

type SerialPortList struct {
	SerialPorts []SerialPort
}

type SerialPort struct {
	Name            string
	Friendly        string
	IsOpen          bool
	IsPrimary       bool
	Baud            int
	BufferAlgorithm string
}

// ErrClosed is returned when sending on a closed Client.
var ErrClosed = errors.New("spjs: client closed")

// Dial starts connecting to url in the background.
func Dial(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		url:      url,
		log:      log.With("spjs", url),
		Retry:    3 * time.Second,
		outgoing: make(chan message, 1000),
		incoming: make(chan interface{}, 1000),
		closeCh:  make(chan struct{}),
	}

	go c.loop()

	return c
}

// Messages delivers parsed server messages.
func (c *Client) Messages() <-chan interface{} { return c.incoming }

// Close stops reconnecting and drops the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}

// ParseMessage decodes a JSON message from the server by sniffing its
// fields.
func ParseMessage(data []byte) (val interface{}, err error) {
	var msg map[string]json.RawMessage
	err = json.Unmarshal(data, &msg)
	if err != nil {
		return nil, err
	}

	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Error("read", "err", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// echo
			continue
		}
		val, err := ParseMessage(data)
		if err != nil {
			c.log.Warn("parse", "err", err)
			continue
		}
		select {
		case c.incoming <- val:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.log.Info("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Error("connect", "err", err)
			select {
			case <-time.After(c.Retry):
			case <-c.closeCh:
				return
			}
			continue
		}
		c.log.Info("connected")
		ch := make(chan struct{})
		go c.readLoop(ws, ch)
		go c.WriteString("list") // port state may have changed

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					c.log.Error("send", "err", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-c.closeCh:
				ws.Close()
				return
			case <-ch:
				ws.Close()
				continue reconnect
			case nextUp = <-c.outgoing:
			}
		}
	}
}

// JSON is a batch of lines for one port.
type JSON struct {
	Port string `json:"P"`
	Data []Data
}

type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

// SendJSON queues lines on a port. It returns once the batch is written to
// the websocket.
func (c *Client) SendJSON(v JSON) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.send(append([]byte("sendjson "), data...))
}

// WriteString sends a raw server command, like "list".
func (c *Client) WriteString(data string) error {
	return c.send([]byte(data))
}

func (c *Client) send(payload []byte) error {
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	ch := make(chan struct{})
	select {
	case c.outgoing <- message{done: ch, payload: payload}:
	case <-c.closeCh:
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-c.closeCh:
		return ErrClosed
	}
}
