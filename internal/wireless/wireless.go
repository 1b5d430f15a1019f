// Package wireless implements the firmware's Bluetooth-backed
// transport as a websocket server: a paired phone or laptop connects
// once, and after that each websocket text message is treated as one
// line of the host protocol, read/write-pumped the same way the
// FluidNC client on this codebase pumps its status socket, just with
// the dialer and listener roles swapped.
package wireless

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 512
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Transport is a single-peer websocket server implementing
// transport.Stream. It never holds more than one connection at a
// time; a new connection replaces whatever was there.
type Transport struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	incoming chan byte
	done     chan struct{}
}

// New builds a Transport. logger defaults to log.Default() when nil.
func New(logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readLimit,
			WriteBufferSize: readLimit,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   logger,
		incoming: make(chan byte, readLimit),
	}
}

// ServeHTTP accepts the pairing handshake's upgrade request. Only one
// peer is accepted; a later connection attempt replaces the current
// one, matching a BT-style single-client pairing model.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Printf("wireless: upgrade failed: %v", err)
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	go t.writePump(conn, done)
	t.readPump(conn, done)
}

// Active reports whether a peer is currently connected.
func (t *Transport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *Transport) readPump(conn *websocket.Conn, done chan struct{}) {
	defer t.disconnect(conn, done)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				t.logger.Printf("wireless: read error: %v", err)
			}
			return
		}
		for _, b := range message {
			select {
			case t.incoming <- b:
			default:
			}
		}
		select {
		case t.incoming <- '\n':
		default:
		}
	}
}

func (t *Transport) writePump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (t *Transport) disconnect(conn *websocket.Conn, done chan struct{}) {
	close(done)
	conn.Close()
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
}

// Available reports bytes buffered from completed incoming messages.
func (t *Transport) Available() (int, error) {
	return len(t.incoming), nil
}

// ReadByte returns the next buffered byte, or an error if none is
// ready; callers must check Available first.
func (t *Transport) ReadByte() (byte, error) {
	select {
	case b := <-t.incoming:
		return b, nil
	default:
		return 0, fmt.Errorf("wireless: no data available")
	}
}

// Print sends s as a single websocket text message.
func (t *Transport) Print(s string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("wireless: not connected")
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// Println sends s followed by a newline as a single text message.
func (t *Transport) Println(s string) error {
	return t.Print(s + "\n")
}
