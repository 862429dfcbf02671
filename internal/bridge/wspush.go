package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaakkos/titandash/internal/dispatch"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

// PushStatus represents the push connection status.
type PushStatus struct {
	Connected    bool      `json:"connected"`
	Reconnecting bool      `json:"reconnecting"`
	LastError    string    `json:"last_error,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// PushListener receives push events over a WebSocket and reconnects with
// exponential backoff when the connection drops. Each text message is a
// JSON-RPC style notification: {"method": ..., "params": ...}.
type PushListener struct {
	url          string
	header       http.Header
	minDelay     time.Duration
	maxDelay     time.Duration
	pingInterval time.Duration
	handle       func(dispatch.Event)
	logger       *log.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	lastError    error
	lastSeen     time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PushOption configures a PushListener.
type PushOption func(*PushListener)

// WithReconnectDelays sets the first and largest delay between reconnects.
func WithReconnectDelays(min, max time.Duration) PushOption {
	return func(l *PushListener) {
		if min > 0 {
			l.minDelay = min
		}
		if max >= l.minDelay {
			l.maxDelay = max
		}
	}
}

// WithPingInterval sets how often a ping is written to keep the connection up.
func WithPingInterval(d time.Duration) PushOption {
	return func(l *PushListener) {
		if d > 0 {
			l.pingInterval = d
		}
	}
}

// NewPushListener creates a listener for url. handle is called from the
// listener's read goroutine.
func NewPushListener(url string, headers map[string]string, handle func(dispatch.Event), logger *log.Logger, opts ...PushOption) *PushListener {
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}
	l := &PushListener{
		url:          url,
		header:       header,
		minDelay:     500 * time.Millisecond,
		maxDelay:     30 * time.Second,
		pingInterval: defaultPingInterval,
		handle:       handle,
		logger:       logger,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start begins the connection and reconnection loop.
func (l *PushListener) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.connectionLoop()
	}()
}

// Stop closes the connection and waits for the loop to exit.
func (l *PushListener) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
	l.mu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

// Status returns the current connection status.
func (l *PushListener) Status() PushStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	errStr := ""
	if l.lastError != nil {
		errStr = l.lastError.Error()
	}
	return PushStatus{
		Connected:    l.connected,
		Reconnecting: l.reconnecting,
		LastError:    errStr,
		LastSeen:     l.lastSeen,
	}
}

func (l *PushListener) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *PushListener) connectionLoop() {
	delay := l.minDelay

	for !l.stopped() {
		if err := l.connect(); err != nil {
			l.mu.Lock()
			l.connected = false
			l.reconnecting = true
			l.lastError = err
			l.mu.Unlock()

			l.logger.Printf("bridge: push connection failed: %v. Reconnecting in %v...", err, delay)

			select {
			case <-l.done:
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > l.maxDelay {
				delay = l.maxDelay
			}
			continue
		}

		delay = l.minDelay
		l.runConnection()
	}
}

func (l *PushListener) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(l.url, l.header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped() {
		conn.Close()
		return errors.New("listener stopped")
	}
	l.conn = conn
	l.connected = true
	l.reconnecting = false
	l.lastError = nil
	l.lastSeen = time.Now()
	l.logger.Printf("bridge: push connected to %s", l.url)
	return nil
}

// runConnection reads until the connection fails, pinging in the background.
func (l *PushListener) runConnection() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	readDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.pingLoop(conn, readDone)
	}()

	l.readLoop(conn)
	close(readDone)
	wg.Wait()

	l.mu.Lock()
	l.connected = false
	conn.Close()
	if l.conn == conn {
		l.conn = nil
	}
	l.mu.Unlock()
}

func (l *PushListener) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !l.stopped() {
				l.logger.Printf("bridge: push read error: %v", err)
			}
			return
		}
		l.mu.Lock()
		l.lastSeen = time.Now()
		l.mu.Unlock()
		l.handleMessage(message)
	}
}

func (l *PushListener) pingLoop(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-readDone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.logger.Printf("bridge: push ping error: %v", err)
				conn.Close()
				return
			}
		}
	}
}

func (l *PushListener) handleMessage(data []byte) {
	var msg struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Printf("bridge: failed to parse push message: %v", err)
		return
	}
	ev, err := DecodeNotification(msg.Method, msg.Params)
	if err != nil {
		if !errors.Is(err, ErrUnknownEvent) {
			l.logger.Printf("bridge: %v", err)
		}
		return
	}
	l.handle(ev)
}
