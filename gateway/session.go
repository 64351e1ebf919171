// Package gateway hosts the per-connection actor that bridges a
// gorilla/websocket connection to the conversation broker through
// the wire protocol, under a cooperative-suspension
// model: a RESPONSE_REQUIRED frame is handled to completion before the
// next frame is read; anything else spawns and runs concurrently with
// subsequent reads.
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/events"
	"adaptarr.dev/logging"
	"adaptarr.dev/protocol"

	"adaptarr.dev/conversation"
)

// pingInterval: a client actor pings its peer
// every 30s; peers that neither pong nor send are dropped.
const pingInterval = 30 * time.Second

// Session is one connected client's actor: a single goroutine reads
// frames and dispatches them, and writeMu serializes writes (gorilla's
// Conn forbids concurrent writers).
type Session struct {
	conn   *websocket.Conn
	addr   string
	userID uint

	broker   *conversation.Broker
	registry *events.Registry
	log      *logrus.Entry

	cookies *protocol.CookieGenerator

	// conversationID is the single conversation this connection is
	// attached to, set by Attach before Run starts reading frames; the
	// wire bodies carry no conversation id of their own.
	conversationID uint

	writeMu sync.Mutex
	closed  bool
}

// NewSession wraps an accepted connection for userID, identified by the
// opaque addr used as its broker listener key.
func NewSession(conn *websocket.Conn, userID uint, addr string, broker *conversation.Broker, registry *events.Registry, log *logrus.Entry) *Session {
	return &Session{
		conn:     conn,
		addr:     addr,
		userID:   userID,
		broker:   broker,
		registry: registry,
		log:      log.WithField("addr", addr),
		cookies:  protocol.NewCookieGenerator(true),
	}
}

// Deliver implements conversation.Listener: a typed conversation event
// pushed by the broker's fan-out.
func (s *Session) Deliver(kind protocol.Kind, data []byte) error {
	return s.writeFrame(protocol.Header{Cookie: s.cookies.Next(), Kind: kind}, data)
}

// eventRecipient adapts a Session to events.Recipient without clashing
// with Session's own Deliver(protocol.Kind, ...) method.
type eventRecipient struct{ s *Session }

func (r eventRecipient) Deliver(kind events.Kind, data []byte) error {
	payload, err := json.Marshal(struct {
		Kind events.Kind     `json:"kind"`
		Data json.RawMessage `json:"data"`
	}{Kind: kind, Data: data})
	if err != nil {
		return err
	}
	return r.s.writeFrame(protocol.Header{Cookie: r.s.cookies.Next(), Kind: protocol.KindNewMessage}, payload)
}

// EventRecipient returns the adapter to register this session on an
// events.Registry for live notification push.
func (s *Session) EventRecipient() events.Recipient { return eventRecipient{s} }

// Run drives the read loop until the connection closes. It registers
// and unregisters the session's live recipients on entry/exit.
func (s *Session) Run() {
	s.registry.Register(s.userID, s.EventRecipient())
	defer s.registry.Unregister(s.userID, s.EventRecipient())
	defer s.conn.Close()
	defer s.Detach()

	s.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		return nil
	})

	stopPing := s.startPingLoop()
	defer stopPing()

	var wg sync.WaitGroup
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			break
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			s.closeWith(protocol.CloseShortOrMalformed)
			break
		}
		if code, shouldClose := protocol.Classify(frame.Header); shouldClose {
			s.closeWith(code)
			break
		}

		if frame.Flags&protocol.ResponseRequired != 0 {
			s.handle(frame)
		} else {
			wg.Add(1)
			go func(f protocol.Frame) {
				defer wg.Done()
				defer logging.RecoverAndLog(s.log)
				s.handle(f)
			}(frame)
		}
	}
	wg.Wait()
}

func (s *Session) startPingLoop() func() {
	ticker := time.NewTicker(pingInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.writeMu.Lock()
				err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
				s.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

func (s *Session) closeWith(code protocol.CloseCode) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(int(code), "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
}

func (s *Session) writeFrame(h protocol.Header, body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(h, body))
}

// respond wraps writeFrame with cookie correlation to the triggering
// request frame.
func (s *Session) respond(req protocol.Frame, kind protocol.Kind, body []byte) {
	if err := s.writeFrame(protocol.Header{Cookie: req.Cookie, Kind: kind}, body); err != nil {
		s.log.WithError(err).Debug("failed to write response frame")
	}
}

// handle dispatches one decoded, already-classified-safe frame.
func (s *Session) handle(req protocol.Frame) {
	switch req.Kind {
	case protocol.KindConnected:
		// Connection handshake; conversation id carried by the caller via
		// a higher-level API (Attach), not modeled as a frame body here.

	case protocol.KindSendMessage:
		s.handleSendMessage(req)

	case protocol.KindGetHistory:
		s.handleGetHistory(req)

	default:
		s.respond(req, protocol.KindUnknownEvent, nil)
	}
}

// Attach joins the session's connection to a conversation as a live
// listener, failing if the conversation does not exist. Must be called
// once, before Run, since the wire bodies carry no conversation id of
// their own and every subsequent frame is scoped to it.
func (s *Session) Attach(conversationID uint) error {
	if err := s.broker.Connect(conversationID, s.userID, s.addr, s); err != nil {
		return err
	}
	s.conversationID = conversationID
	return nil
}

// Detach removes the session's listener from its conversation, e.g.
// when the draft using it is terminated or the client disconnects.
func (s *Session) Detach() {
	s.broker.Disconnect(s.conversationID, s.addr)
}

func (s *Session) handleSendMessage(req protocol.Frame) {
	body := protocol.DecodeSendMessage(req.Body)

	id, err := s.broker.NewMessage(s.conversationID, s.userID, body)
	if err != nil {
		s.respond(req, protocol.KindMessageInvalid, protocol.EncodeMessageInvalid(err.Error()))
		return
	}
	s.respond(req, protocol.KindMessageReceived, protocol.EncodeMessageReceived(int32(id)))
}

func (s *Session) handleGetHistory(req protocol.Frame) {
	reqBody, err := protocol.DecodeGetHistory(req.Body)
	if err != nil {
		s.closeWith(protocol.CloseShortOrMalformed)
		return
	}

	var from *uint
	if reqBody.From != nil {
		v := uint(*reqBody.From)
		from = &v
	}

	result, err := s.broker.GetHistory(s.conversationID, from, reqBody.Before, reqBody.After)
	if err != nil {
		s.respond(req, protocol.KindMessageInvalid, protocol.EncodeMessageInvalid(err.Error()))
		return
	}

	entries := make([]protocol.HistoryEntry, 0, len(result.Before)+len(result.After))
	for _, e := range result.Before {
		entries = append(entries, encodeHistoryEntry(e))
	}
	for _, e := range result.After {
		entries = append(entries, encodeHistoryEntry(e))
	}

	body := protocol.HistoryEntriesBody{
		CountBefore: uint16(len(result.Before)),
		CountAfter:  uint16(len(result.After)),
		Entries:     entries,
	}
	s.respond(req, protocol.KindHistoryEntries, protocol.EncodeHistoryEntries(body))
}

func encodeHistoryEntry(e adaptarrdb.ConversationEvent) protocol.HistoryEntry {
	var userID int32
	if e.AuthorID != nil {
		userID = int32(*e.AuthorID)
	}
	body := protocol.EncodeNewMessage(protocol.NewMessageBody{
		ID:        int32(e.ID),
		User:      userID,
		Timestamp: e.CreatedAt.Unix(),
		Body:      e.Data,
	})
	return protocol.HistoryEntry{Kind: protocol.KindNewMessage, Body: body}
}

// ensure Session satisfies conversation.Listener.
var _ conversation.Listener = (*Session)(nil)
