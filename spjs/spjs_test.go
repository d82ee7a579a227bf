package spjs

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	val, err := ParseMessage([]byte(`{"SerialPorts":[{"Name":"/dev/ttyUSB0","IsOpen":true,"Baud":115200}]}`))
	require.NoError(t, err)
	list, ok := val.(*SerialPortList)
	require.True(t, ok)
	require.Len(t, list.SerialPorts, 1)
	assert.Equal(t, "/dev/ttyUSB0", list.SerialPorts[0].Name)
	assert.True(t, list.SerialPorts[0].IsOpen)

	val, err = ParseMessage([]byte(`{"Cmd":"Complete","Id":"cmd_1","P":"/dev/ttyUSB0","D":"G1 X1"}`))
	require.NoError(t, err)
	assert.Equal(t, &CmdStatus{Cmd: "Complete", ID: "cmd_1", Port: "/dev/ttyUSB0"}, val)

	val, err = ParseMessage([]byte(`{"P":"/dev/ttyUSB0","D":"ok\n"}`))
	require.NoError(t, err)
	assert.Equal(t, &DataFrame{Port: "/dev/ttyUSB0", Data: "ok\n"}, val)

	val, err = ParseMessage([]byte(`{"Error":"port not open"}`))
	require.NoError(t, err)
	assert.Equal(t, &ErrorMessage{Error: "port not open"}, val)

	_, err = ParseMessage([]byte(`{"Hostname":"cnc"}`))
	assert.Error(t, err)
	_, err = ParseMessage([]byte(`{`))
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	received := make(chan string, 10)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
			if string(data) == "list" {
				ws.WriteMessage(websocket.TextMessage, []byte("list"))
				ws.WriteMessage(websocket.TextMessage, []byte(`{"SerialPorts":[{"Name":"COM3"}]}`))
			}
		}
	}))
	defer srv.Close()

	c := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer c.Close()

	next := func() string {
		select {
		case s := <-received:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("timeout")
		}
		return ""
	}

	assert.Equal(t, "list", next())
	select {
	case msg := <-c.Messages():
		assert.Equal(t, &SerialPortList{SerialPorts: []SerialPort{{Name: "COM3"}}}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}

	err := c.SendJSON(JSON{Port: "COM3", Data: []Data{{Data: "M30\n", ID: "a"}}})
	require.NoError(t, err)
	assert.Equal(t, `sendjson {"P":"COM3","Data":[{"D":"M30\n","Id":"a"}]}`, next())

	c.Close()
	assert.Equal(t, ErrClosed, c.WriteString("list"))
}
