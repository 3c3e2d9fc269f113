package ipc

import (
	"encoding/json"
	"net"
	"sync"
	"time"
)

// SOCKET_TIMEOUT bounds connecting to, and each write to, the status socket.
const SOCKET_TIMEOUT = 2 * time.Second

// SocketPublisher writes messages as JSON lines to a unix domain socket.
type SocketPublisher struct {
	Path string

	mu      sync.Mutex
	conn    net.Conn
	encoder *json.Encoder
}

var _ Publisher = (*SocketPublisher)(nil)

// Dial connects to a listening status socket.
func Dial(path string) (sp *SocketPublisher, err error) {
	conn, err := net.DialTimeout("unix", path, SOCKET_TIMEOUT)
	if err != nil {
		err = &ErrConnect{Path: path, Err: err}
		return
	}

	sp = &SocketPublisher{
		Path:    path,
		conn:    conn,
		encoder: json.NewEncoder(conn),
	}
	return
}

// Publish writes one message line.
func (sp *SocketPublisher) Publish(msg Message) (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.conn == nil {
		err = ErrClosed
		return
	}

	err = sp.conn.SetWriteDeadline(time.Now().Add(SOCKET_TIMEOUT))
	if err != nil {
		return
	}

	err = sp.encoder.Encode(msg)
	return
}

// Close closes the connection. Closing twice returns ErrClosed.
func (sp *SocketPublisher) Close() (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.conn == nil {
		err = ErrClosed
		return
	}

	err = sp.conn.Close()
	sp.conn = nil
	sp.encoder = nil
	return
}
