package foxglove

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ratitude/pkg/engine"
	"ratitude/pkg/protocol"
)

const logLevelInfo = 2

// FramePacket is the per-frame record published on the primary topic:
// the same fields logger.JSONLWriter writes to disk except "ts", so a
// Foxglove viewer and the JSONL log agree on one vocabulary for a decoded
// frame. The receive time is not a field of the record; it is sent as the
// message's log time.
type FramePacket struct {
	Command    string `json:"command"`
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	PayloadHex string `json:"payload_hex"`
	Value      any    `json:"value,omitempty"`
	DecodeErr  string `json:"decode_error,omitempty"`
}

type LogMessage struct {
	Timestamp FrameTime `json:"timestamp"`
	Level     uint8     `json:"level"`
	Message   string    `json:"message"`
	Name      string    `json:"name"`
}

type FrameTime struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// Server bridges a Hub of decoded frames onto the Foxglove websocket
// protocol: every frame is published on the primary channel, and
// anything resolving to an EVENT_TABLE value additionally fans its
// entries out onto a log channel, one LogMessage per entry.
type Server struct {
	cfg      Config
	hub      *engine.Hub
	registry *protocol.Registry // optional; nil means no name/value resolution
	clients  map[*client]struct{}
	mu       sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

// NewServer builds a Server. registry may be nil, in which case
// FramePacket records carry only the numeric OID.
func NewServer(cfg Config, hub *engine.Hub, registry *protocol.Registry) *Server {
	defaults := DefaultConfig()
	if cfg.WSAddr == "" {
		cfg.WSAddr = defaults.WSAddr
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.ChannelID == 0 {
		cfg.ChannelID = defaults.ChannelID
	}
	if cfg.SchemaName == "" {
		cfg.SchemaName = defaults.SchemaName
	}
	if cfg.SchemaEncoding == "" {
		cfg.SchemaEncoding = defaults.SchemaEncoding
	}
	if cfg.Schema == "" {
		cfg.Schema = defaults.Schema
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaults.Encoding
	}
	if cfg.LogTopic == "" {
		cfg.LogTopic = defaults.LogTopic
	}
	if cfg.LogChannelID == 0 {
		cfg.LogChannelID = defaults.LogChannelID
	}
	if cfg.LogSchemaName == "" {
		cfg.LogSchemaName = defaults.LogSchemaName
	}
	if cfg.LogSchemaEncoding == "" {
		cfg.LogSchemaEncoding = defaults.LogSchemaEncoding
	}
	if cfg.LogSchema == "" {
		cfg.LogSchema = defaults.LogSchema
	}
	if cfg.LogEncoding == "" {
		cfg.LogEncoding = defaults.LogEncoding
	}
	if cfg.LogName == "" {
		cfg.LogName = defaults.LogName
	}
	if cfg.LogChannelID == cfg.ChannelID {
		cfg.LogChannelID = cfg.ChannelID + 1
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		registry: registry,
		clients:  make(map[*client]struct{}),
	}
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:    s.cfg.WSAddr,
		Handler: mux,
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"foxglove.websocket.v1"},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)

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
}

func (s *Server) supportedChannels() map[uint64]struct{} {
	return map[uint64]struct{}{
		s.cfg.ChannelID:    {},
		s.cfg.LogChannelID: {},
	}
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{
		Op: OpAdvertise,
		Channels: []Channel{
			{
				ID:             s.cfg.ChannelID,
				Topic:          s.cfg.Topic,
				Encoding:       s.cfg.Encoding,
				SchemaName:     s.cfg.SchemaName,
				SchemaEncoding: s.cfg.SchemaEncoding,
				Schema:         s.cfg.Schema,
			},
			{
				ID:             s.cfg.LogChannelID,
				Topic:          s.cfg.LogTopic,
				Encoding:       s.cfg.LogEncoding,
				SchemaName:     s.cfg.LogSchemaName,
				SchemaEncoding: s.cfg.LogSchemaEncoding,
				Schema:         s.cfg.LogSchema,
			},
		},
	}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			s.broadcastEvent(evt)
		}
	}
}

func (s *Server) broadcastEvent(evt engine.Event) {
	rec, value := s.framePacket(evt)
	s.publishJSONToChannel(s.cfg.ChannelID, evt.At, rec)

	if events, ok := value.(*protocol.EventTable); ok {
		for _, entry := range events.Entries {
			s.publishJSONToChannel(s.cfg.LogChannelID, evt.At, s.logFromEntry(evt.At, entry))
		}
	}
}

func (s *Server) framePacket(evt engine.Event) (FramePacket, any) {
	rec := FramePacket{
		Command:    evt.Frame.Command.String(),
		ID:         fmt.Sprintf("0x%08X", evt.Frame.ID),
		PayloadHex: hex.EncodeToString(evt.Frame.Data),
	}
	if evt.Frame.Address != 0 {
		rec.Address = fmt.Sprintf("0x%08X", evt.Frame.Address)
	}
	if s.registry == nil {
		return rec, nil
	}
	info, err := s.registry.GetByID(evt.Frame.ID)
	if err != nil {
		return rec, nil
	}
	rec.Name = info.Name
	value, err := protocol.DecodeValue(info.ResponseDataType, evt.Frame.Data)
	if err != nil {
		rec.DecodeErr = err.Error()
		return rec, nil
	}
	rec.Value = value
	return rec, value
}

func (s *Server) logFromEntry(ts time.Time, entry protocol.EventTableEntry) LogMessage {
	return LogMessage{
		Timestamp: FrameTime{Sec: uint32(ts.Unix()), Nsec: uint32(ts.Nanosecond())},
		Level:     logLevelInfo,
		Message:   fmt.Sprintf("event kind=%s marker=0x%X e2=%d e3=%d e4=%d e5=%d", entry.Kind(), entry.TypeMarker, entry.Element2, entry.Element3, entry.Element4, entry.Element5),
		Name:      s.cfg.LogName,
	}
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}

	logTime := uint64(ts.UnixNano())
	clients := s.snapshotClients()
	for _, c := range clients {
		subIDs := c.subIDsForChannel(channelID)
		for _, subID := range subIDs {
			frame := EncodeMessageData(subID, logTime, payload)
			c.trySend(frame)
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
