package rtc

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Wire frames for the websocket data channel. The substrate multiplexes
// per-topic data packets over one socket; payloads travel base64-encoded
// inside JSON frames.
type wsFrame struct {
	Type     string `json:"type"`
	Room     string `json:"room,omitempty"`
	Identity string `json:"identity,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Reliable bool   `json:"reliable,omitempty"`
	DataB64  string `json:"data_b64,omitempty"`
}

const (
	frameJoined = "joined"
	frameData   = "data"
	framePub    = "publish"
)

// DialConfig configures a websocket room join.
type DialConfig struct {
	// URL is the substrate websocket endpoint (ws:// or wss://).
	URL string

	// Token is the access grant minted for this participant.
	Token string

	Logger *slog.Logger

	// HandshakeTimeout bounds the dial plus the joined ack. Defaults to 10s.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame write. Defaults to 5s.
	WriteTimeout time.Duration
}

// wsRoom implements Room over a websocket connection.
type wsRoom struct {
	conn   *websocket.Conn
	logger *slog.Logger

	name     string
	identity string
	metadata string

	writeTimeout time.Duration

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handler   DataHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial joins a room over websocket and starts the read loop. The returned
// Room's metadata is the value carried by the joined ack.
func Dial(ctx context.Context, cfg DialConfig) (Room, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse room url %q: %w", cfg.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported room url scheme %q", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.Token))

	dialCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(dialCtx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("join room: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("join room: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	var joined wsFrame
	if err := conn.ReadJSON(&joined); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read joined ack: %w", err)
	}
	if joined.Type != frameJoined {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q, want %q", joined.Type, frameJoined)
	}
	_ = conn.SetReadDeadline(time.Time{})

	r := &wsRoom{
		conn:         conn,
		logger:       cfg.Logger,
		name:         joined.Room,
		identity:     joined.Identity,
		metadata:     joined.Metadata,
		writeTimeout: cfg.WriteTimeout,
		closed:       make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *wsRoom) Name() string          { return r.name }
func (r *wsRoom) Metadata() string      { return r.metadata }
func (r *wsRoom) LocalIdentity() string { return r.identity }

func (r *wsRoom) OnData(h DataHandler) {
	r.handlerMu.Lock()
	r.handler = h
	r.handlerMu.Unlock()
}

func (r *wsRoom) PublishData(ctx context.Context, payload []byte, topic string, reliable bool) error {
	frame := wsFrame{
		Type:     framePub,
		Topic:    topic,
		Reliable: reliable,
		DataB64:  base64.StdEncoding.EncodeToString(payload),
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	select {
	case <-r.closed:
		return fmt.Errorf("room %q is closed", r.name)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(r.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = r.conn.SetWriteDeadline(deadline)
	return r.conn.WriteJSON(frame)
}

func (r *wsRoom) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		r.writeMu.Lock()
		_ = r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(r.writeTimeout))
		err = r.conn.Close()
		r.writeMu.Unlock()
	})
	return err
}

func (r *wsRoom) readLoop() {
	for {
		var frame wsFrame
		if err := r.conn.ReadJSON(&frame); err != nil {
			select {
			case <-r.closed:
			default:
				r.logger.Warn("room read loop ended", "room", r.name, "error", err)
			}
			return
		}
		if frame.Type != frameData {
			continue
		}

		payload, err := base64.StdEncoding.DecodeString(frame.DataB64)
		if err != nil {
			r.logger.Warn("dropping undecodable data frame", "room", r.name, "topic", frame.Topic)
			continue
		}

		r.handlerMu.RLock()
		h := r.handler
		r.handlerMu.RUnlock()
		if h != nil {
			h(DataPacket{Topic: frame.Topic, SenderIdentity: frame.Sender, Payload: payload})
		}
	}
}
