package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeDeadline     = 5 * time.Second
	defaultPingPeriod = 54 * time.Second
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSObserver is a websocket transport endpoint implementing Observer.
type WSObserver struct {
	id         ObserverID
	conn       WSConn
	send       chan []byte
	pingPeriod time.Duration

	mu      sync.RWMutex
	closed  bool
	onClose func()
}

// OnClose registers a hook fired once when the connection shuts down.
// Call before Serve.
func (o *WSObserver) OnClose(fn func()) { o.onClose = fn }

func NewWSObserver(id ObserverID, conn WSConn, buffer int, pingPeriod time.Duration) *WSObserver {
	if buffer <= 0 {
		buffer = 32
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &WSObserver{
		id:         id,
		conn:       conn,
		send:       make(chan []byte, buffer),
		pingPeriod: pingPeriod,
	}
}

func (o *WSObserver) ID() ObserverID { return o.id }

func (o *WSObserver) TrySend(data []byte) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return errors.New("connection closed")
	}
	select {
	case o.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (o *WSObserver) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.send)
	_ = o.conn.Close()
	fn := o.onClose
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Serve attaches the observer to the hub and runs the read/write pumps
// until the connection or the context dies. Detach happens exactly
// once, on read-pump exit.
func (o *WSObserver) Serve(ctx context.Context, h *Hub) {
	h.Attach(o)
	go o.writePump(ctx)
	go o.readPump(ctx, h)
}

func (o *WSObserver) writePump(ctx context.Context) {
	ticker := time.NewTicker(o.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-o.send:
			if !ok {
				return
			}
			if err := o.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "hub.ws").Str("observer", string(o.id)).Msg("set write deadline")
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "hub.ws").Str("observer", string(o.id)).Msg("write error")
				return
			}
		}
	}
}

func (o *WSObserver) readPump(ctx context.Context, h *Hub) {
	defer func() {
		h.Detach(o.id)
		o.Close()
		log.Info().Str("module", "hub.ws").Str("observer", string(o.id)).Msg("readPump closing")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := o.conn.ReadMessage()
			if err != nil {
				return
			}
			o.handleMessage(h, data)
		}
	}
}

func (o *WSObserver) handleMessage(h *Hub, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "hub.ws").Str("observer", string(o.id)).Msg("bad json")
		return
	}
	if !env.Topic.Known() {
		log.Warn().Str("module", "hub.ws").Str("topic", string(env.Topic)).Msg("unknown topic")
		return
	}
	h.Publish(o.id, env.Topic, env.Payload)
}
