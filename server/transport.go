package server

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsTransport adapts a gorilla connection to the relay transport. Writes
// are serialized: the synthesis forwarder and the relay pumps both write.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() (bool, []byte, error) {
	messageType, data, err := t.conn.ReadMessage()
	if err != nil {
		return false, nil, err
	}
	return messageType == websocket.BinaryMessage, data, nil
}

func (t *wsTransport) WriteAudio(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *wsTransport) WriteControl(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
