package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client serialises writes to a websocket connection. gorilla connections
// allow one concurrent writer.
type Client struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewClient(ws *websocket.Conn) *Client {
	return &Client{ws: ws}
}

func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Ping sends a keepalive control frame
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ReadMessage reads the next frame. Only the connection's read loop calls it.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
