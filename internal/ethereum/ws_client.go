package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"voting-token-client/internal/log"
	"voting-token-client/internal/observability"
)

// ErrWSClosed is returned by a closed WSClientImpl.
var ErrWSClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the first redial delay; it doubles per failure.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the redial delay.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription ID.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSClientImpl streams newHeads over a single gorilla/websocket connection.
// A broken connection is redialed with exponential backoff and every live
// subscriber is moved onto a fresh node subscription; subscriber channels
// survive the reconnect.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	// life is cancelled by Close and bounds every background goroutine.
	life      context.Context
	shutdown  context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	connMu sync.Mutex
	conn   *websocket.Conn
	nextID atomic.Uint64

	mu      sync.Mutex
	subs    map[string]chan Head   // node subscription ID -> subscriber
	replies map[uint64]chan string // request ID -> awaited subscription ID
}

// NewWSClient dials endpoint and starts the read and keep-alive loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[string]chan Head),
		replies:  make(map[uint64]chan string),
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.life, c.shutdown = context.WithCancel(context.Background())

	c.wg.Add(2)
	go c.readLoop()
	go c.keepAlive()
	return c, nil
}

func (c *WSClientImpl) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.endpoint, err)
	}
	return conn, nil
}

func (c *WSClientImpl) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// SubscribeNewHeads subscribes to new block headers. The returned channel
// is closed when ctx is done or the client is closed.
func (c *WSClientImpl) SubscribeNewHeads(ctx context.Context) (<-chan Head, error) {
	if c.life.Err() != nil {
		return nil, ErrWSClosed
	}
	subID, err := c.subscribe(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan Head, 64)
	c.mu.Lock()
	if c.life.Err() != nil {
		c.mu.Unlock()
		return nil, ErrWSClosed
	}
	c.subs[subID] = ch
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(ch)
		case <-c.life.Done():
		}
	}()
	return ch, nil
}

// subscribe sends eth_subscribe and waits for the node's subscription ID.
func (c *WSClientImpl) subscribe(ctx context.Context) (string, error) {
	id := c.nextID.Add(1)
	reply := make(chan string, 1)
	c.mu.Lock()
	if c.life.Err() != nil {
		c.mu.Unlock()
		return "", ErrWSClosed
	}
	c.replies[id] = reply
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.replies, id)
		c.mu.Unlock()
	}

	if err := c.send(wsRequest{JSONRPC: "2.0", ID: id, Method: "eth_subscribe", Params: []interface{}{"newHeads"}}); err != nil {
		forget()
		return "", err
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()
	select {
	case subID, ok := <-reply:
		if !ok {
			return "", ErrWSClosed
		}
		return subID, nil
	case <-timer.C:
		forget()
		return "", fmt.Errorf("no subscription ID within %s", c.config.SubscribeTimeout)
	case <-ctx.Done():
		forget()
		return "", ctx.Err()
	}
}

// unsubscribe closes ch and tells the node to stop sending.
func (c *WSClientImpl) unsubscribe(ch chan Head) {
	c.mu.Lock()
	subID := ""
	for id, sub := range c.subs {
		if sub == ch {
			subID = id
			delete(c.subs, id)
			close(sub)
			break
		}
	}
	c.mu.Unlock()

	if subID == "" || c.life.Err() != nil {
		return
	}
	_ = c.send(wsRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: "eth_unsubscribe", Params: []interface{}{subID}})
}

func (c *WSClientImpl) send(req wsRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%s: not connected", req.Method)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Close stops the loops, closes the connection and every subscriber channel.
// It is safe to call more than once.
func (c *WSClientImpl) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.shutdown()
		c.mu.Unlock()

		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
		}
		c.connMu.Unlock()

		c.wg.Wait()

		c.mu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		for id, ch := range c.replies {
			close(ch)
			delete(c.replies, id)
		}
		c.mu.Unlock()
	})
	return nil
}

// readLoop is the only reader of the connection. A read error blocks the
// loop until redial succeeds or the client closes.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for c.life.Err() == nil {
		conn := c.current()
		_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err == nil {
			c.dispatch(message)
			continue
		}
		if c.life.Err() != nil {
			return
		}
		log.L(c.life).Warnf("websocket read from %s failed: %s", c.endpoint, err)
		if !c.redial() {
			return
		}
		c.wg.Add(1)
		go c.resubscribe()
	}
}

// redial replaces the connection, retrying with exponential backoff until
// it succeeds or the client closes.
func (c *WSClientImpl) redial() bool {
	c.connMu.Lock()
	c.conn.Close()
	c.connMu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.ReconnectDelay
	policy.MaxInterval = c.config.MaxReconnectDelay
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		observability.RecordWSReconnect()
		ctx, cancel := context.WithTimeout(c.life, 30*time.Second)
		defer cancel()
		conn, err := c.dial(ctx)
		if err != nil {
			return err
		}
		c.connMu.Lock()
		defer c.connMu.Unlock()
		if c.life.Err() != nil {
			conn.Close()
			return backoff.Permanent(ErrWSClosed)
		}
		c.conn = conn
		return nil
	}, backoff.WithContext(policy, c.life), func(err error, wait time.Duration) {
		log.L(c.life).Warnf("websocket redial failed, retrying in %s: %s", wait, err)
	})
	return err == nil
}

// resubscribe moves every live subscriber onto a new node subscription.
func (c *WSClientImpl) resubscribe() {
	defer c.wg.Done()

	c.mu.Lock()
	stale := make(map[string]chan Head, len(c.subs))
	for id, ch := range c.subs {
		stale[id] = ch
	}
	c.mu.Unlock()

	for oldID, ch := range stale {
		ctx, cancel := context.WithTimeout(c.life, c.config.SubscribeTimeout)
		newID, err := c.subscribe(ctx)
		cancel()
		if err != nil {
			log.L(c.life).Warnf("resubscribe %s failed: %s", oldID, err)
			continue
		}

		c.mu.Lock()
		if cur, ok := c.subs[oldID]; ok && cur == ch {
			delete(c.subs, oldID)
			c.subs[newID] = ch
		}
		c.mu.Unlock()
	}
}

func (c *WSClientImpl) dispatch(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch {
	case msg.Method == "eth_subscription" && msg.Params != nil:
		c.deliver(msg.Params)
	case msg.Error != nil:
		log.L(c.life).Warnf("websocket error response id=%d code=%d msg=%s", msg.ID, msg.Error.Code, msg.Error.Message)
	case msg.ID != 0 && len(msg.Result) > 0:
		var subID string
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			return
		}
		c.mu.Lock()
		reply, ok := c.replies[msg.ID]
		delete(c.replies, msg.ID)
		c.mu.Unlock()
		if ok {
			reply <- subID
		}
	}
}

func (c *WSClientImpl) deliver(params *wsNotificationParams) {
	head := Head{Hash: params.Result.Hash}
	if params.Result.Number != nil {
		head.Number = params.Result.Number.Uint64()
	}
	if params.Result.Timestamp != nil {
		head.Timestamp = params.Result.Timestamp.Uint64()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[params.Subscription]
	if !ok {
		return
	}
	// A full buffer means the waiter is behind; it only needs the latest height.
	select {
	case ch <- head:
	default:
	}
}

// keepAlive pings on an interval. A failed ping surfaces as a read error.
func (c *WSClientImpl) keepAlive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.life.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsMessage struct {
	ID     uint64                `json:"id,omitempty"`
	Method string                `json:"method,omitempty"`
	Result json.RawMessage       `json:"result,omitempty"`
	Params *wsNotificationParams `json:"params,omitempty"`
	Error  *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type wsNotificationParams struct {
	Subscription string `json:"subscription"`
	Result       wsHead `json:"result"`
}

type wsHead struct {
	Number    *ethtypes.HexUint64 `json:"number"`
	Hash      string              `json:"hash"`
	Timestamp *ethtypes.HexUint64 `json:"timestamp"`
}

var _ WSClient = (*WSClientImpl)(nil)
