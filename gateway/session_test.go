package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/events"
	"adaptarr.dev/protocol"

	"adaptarr.dev/conversation"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

var upgrader = websocket.Upgrader{}

func startTestServer(t *testing.T, broker *conversation.Broker, registry *events.Registry, userID, conversationID uint) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sess := NewSession(conn, userID, r.RemoteAddr, broker, registry, logrus.NewEntry(logrus.New()))
		require.NoError(t, sess.Attach(conversationID))
		sess.Run()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSendMessageRoundTrip(t *testing.T) {
	gdb := openTestDB(t)
	conv := adaptarrdb.Conversation{}
	require.NoError(t, gdb.Create(&conv).Error)
	user := adaptarrdb.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&user).Error)
	require.NoError(t, gdb.Create(&adaptarrdb.ConversationMember{ConversationID: conv.ID, UserID: user.ID}).Error)

	reg := events.NewRegistry()
	fanout := events.New(gdb, reg, logrus.NewEntry(logrus.New()))
	broker := conversation.New(gdb, fanout, logrus.NewEntry(logrus.New()))

	wsURL := startTestServer(t, broker, reg, user.ID, conv.ID)

	u, err := url.Parse(wsURL)
	require.NoError(t, err)
	client, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer client.Close()

	req := protocol.Encode(protocol.Header{
		Cookie: 1,
		Kind:   protocol.KindSendMessage,
		Flags:  protocol.MustProcess | protocol.ResponseRequired,
	}, protocol.EncodeSendMessage([]byte("hello there")))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, req))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, protocol.KindMessageReceived, frame.Kind)
	require.EqualValues(t, 1, frame.Cookie)

	receivedID, err := protocol.DecodeMessageReceived(frame.Body)
	require.NoError(t, err)

	var row adaptarrdb.ConversationEvent
	require.NoError(t, gdb.Where("conversation_id = ?", conv.ID).First(&row).Error)
	require.EqualValues(t, row.ID, receivedID, "MessageReceived must carry the persisted event's real id")

	var count int64
	gdb.Model(&adaptarrdb.ConversationEvent{}).Where("conversation_id = ?", conv.ID).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestGetHistoryRoundTrip(t *testing.T) {
	gdb := openTestDB(t)
	conv := adaptarrdb.Conversation{}
	require.NoError(t, gdb.Create(&conv).Error)
	user := adaptarrdb.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&user).Error)
	require.NoError(t, gdb.Create(&adaptarrdb.ConversationMember{ConversationID: conv.ID, UserID: user.ID}).Error)

	reg := events.NewRegistry()
	fanout := events.New(gdb, reg, logrus.NewEntry(logrus.New()))
	broker := conversation.New(gdb, fanout, logrus.NewEntry(logrus.New()))
	_, err := broker.NewMessage(conv.ID, user.ID, []byte("first"))
	require.NoError(t, err)
	_, err = broker.NewMessage(conv.ID, user.ID, []byte("second"))
	require.NoError(t, err)

	wsURL := startTestServer(t, broker, reg, user.ID, conv.ID)
	u, err := url.Parse(wsURL)
	require.NoError(t, err)
	client, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer client.Close()

	req := protocol.Encode(protocol.Header{
		Cookie: 2,
		Kind:   protocol.KindGetHistory,
		Flags:  protocol.ResponseRequired,
	}, protocol.EncodeGetHistory(protocol.GetHistoryBody{Before: 10, After: 0}))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, req))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	frame, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, protocol.KindHistoryEntries, frame.Kind)

	entries, err := protocol.DecodeHistoryEntries(frame.Body)
	require.NoError(t, err)
	require.EqualValues(t, 2, entries.CountBefore)
	require.Len(t, entries.Entries, 2)
}

func TestUnknownMustProcessKindClosesConnection(t *testing.T) {
	gdb := openTestDB(t)
	conv := adaptarrdb.Conversation{}
	require.NoError(t, gdb.Create(&conv).Error)
	user := adaptarrdb.User{Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&user).Error)
	require.NoError(t, gdb.Create(&adaptarrdb.ConversationMember{ConversationID: conv.ID, UserID: user.ID}).Error)

	reg := events.NewRegistry()
	fanout := events.New(gdb, reg, logrus.NewEntry(logrus.New()))
	broker := conversation.New(gdb, fanout, logrus.NewEntry(logrus.New()))

	wsURL := startTestServer(t, broker, reg, user.ID, conv.ID)
	u, err := url.Parse(wsURL)
	require.NoError(t, err)
	client, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer client.Close()

	req := protocol.Encode(protocol.Header{
		Cookie: 3,
		Kind:   protocol.Kind(0x1234),
		Flags:  protocol.MustProcess,
	}, nil)
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, req))

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = client.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	require.Equal(t, int(protocol.CloseMustProcessUnknownKind), closeErr.Code)
}
