// Package foxglove serves rendered poses to Foxglove Studio over the
// foxglove.websocket.v1 protocol.
package foxglove

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bodytrack/pkg/engine"
)

const Subprotocol = "foxglove.websocket.v1"

type Server struct {
	cfg     Config
	hub     *engine.Hub
	log     zerolog.Logger
	clients map[*client]struct{}
	mu      sync.RWMutex
	addr    chan net.Addr
}

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

func NewServer(cfg Config, hub *engine.Hub, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.withDefaults(),
		hub:     hub,
		log:     zerolog.Nop(),
		clients: make(map[*client]struct{}),
		addr:    make(chan net.Addr, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Config() Config {
	return s.cfg
}

// Addr blocks until Run has bound its listener or ctx is done.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case a := <-s.addr:
		s.addr <- a
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.WSAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.hub != nil {
		sub := s.hub.Subscribe("foxglove")
		go s.broadcastLoop(ctx, sub)
	}
	s.addr <- ln.Addr()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("foxglove bridge listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		s.closeClients()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("foxglove client connected")

	if err := conn.WriteJSON(s.serverInfo()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}
	if err := conn.WriteJSON(s.advertise()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	c.readLoop(s.supportedChannels())

	c.close()
	s.removeClient(c)
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("foxglove client disconnected")
}

func (s *Server) supportedChannels() map[uint64]struct{} {
	return map[uint64]struct{}{
		JointsChannelID:    {},
		MarkerChannelID:    {},
		TransformChannelID: {},
		LogChannelID:       {},
	}
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{Op: OpAdvertise, Channels: []Channel{
		{
			ID:             JointsChannelID,
			Topic:          s.cfg.JointsTopic,
			Encoding:       "json",
			SchemaName:     "bodytrack.Joints",
			SchemaEncoding: "jsonschema",
			Schema:         JointsSchema,
		},
		{
			ID:             MarkerChannelID,
			Topic:          s.cfg.MarkerTopic,
			Encoding:       "json",
			SchemaName:     "visualization_msgs/Marker",
			SchemaEncoding: "jsonschema",
			Schema:         MarkerSchema,
		},
		{
			ID:             TransformChannelID,
			Topic:          s.cfg.TransformTopic,
			Encoding:       "json",
			SchemaName:     "foxglove.FrameTransforms",
			SchemaEncoding: "jsonschema",
			Schema:         TransformSchema,
		},
		{
			ID:             LogChannelID,
			Topic:          s.cfg.LogTopic,
			Encoding:       "json",
			SchemaName:     "foxglove.Log",
			SchemaEncoding: "jsonschema",
			Schema:         LogSchema,
		},
	}}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan engine.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-sub:
			if !ok {
				return
			}
			s.PublishSample(sample)
		}
	}
}

// PublishSample sends one rendered pose on the joints, marker and
// transform channels.
func (s *Server) PublishSample(sample engine.Sample) {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.publishJSONToChannel(JointsChannelID, ts, jointsMessage(sample, ts))
	s.publishJSONToChannel(MarkerChannelID, ts, s.skeletonMarker(sample, ts))
	s.publishJSONToChannel(MarkerChannelID, ts, s.jointMarker(sample, ts))
	s.publishJSONToChannel(TransformChannelID, ts, s.bodyTransform(sample, ts))
}

// PublishLog sends a line to the log panel.
func (s *Server) PublishLog(level uint8, msg string) {
	ts := time.Now()
	s.publishJSONToChannel(LogChannelID, ts, s.logMessage(level, msg, ts))
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.log.Warn().Err(err).Uint64("channel", channelID).Msg("encode foxglove message")
		return
	}

	logTime := uint64(ts.UnixNano())
	for _, c := range s.snapshotClients() {
		for _, subID := range c.subIDsForChannel(channelID) {
			c.trySend(EncodeMessageData(subID, logTime, payload))
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	for _, c := range s.snapshotClients() {
		c.close()
	}
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
		subs: make(map[uint32]uint64),
	}
}

func (c *client) readLoop(supportedChannels map[uint64]struct{}) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, sub := range msg.Subscriptions {
				if _, ok := supportedChannels[sub.ChannelID]; ok {
					c.addSub(sub.ID, sub.ChannelID)
				}
			}
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, id := range msg.SubscriptionIDs {
				c.removeSub(id)
			}
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

// trySend drops the message when the client is behind. The recover guards
// a send racing close.
func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) addSub(id uint32, channelID uint64) {
	c.mu.Lock()
	c.subs[id] = channelID
	c.mu.Unlock()
}

func (c *client) removeSub(id uint32) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *client) subIDsForChannel(channelID uint64) []uint32 {
	c.mu.RLock()
	ids := make([]uint32, 0, len(c.subs))
	for id, ch := range c.subs {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return ids
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
