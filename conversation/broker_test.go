package conversation

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/protocol"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := adaptarrdb.ConnectSQLite()
	require.NoError(t, err)
	return gdb
}

func seedConversation(t *testing.T, gdb *gorm.DB, memberEmails ...string) (uint, []uint) {
	t.Helper()
	conv := adaptarrdb.Conversation{}
	require.NoError(t, gdb.Create(&conv).Error)

	ids := make([]uint, len(memberEmails))
	for i, email := range memberEmails {
		user := adaptarrdb.User{Email: email, PasswordHash: "x"}
		require.NoError(t, gdb.Create(&user).Error)
		require.NoError(t, gdb.Create(&adaptarrdb.ConversationMember{ConversationID: conv.ID, UserID: user.ID}).Error)
		ids[i] = user.ID
	}
	return conv.ID, ids
}

type fakeNotifier struct {
	offline []uint
}

func (f *fakeNotifier) NewMessageOffline(conversationID, authorID, recipientID uint, body string) {
	f.offline = append(f.offline, recipientID)
}

type recordingListener struct {
	delivered [][]byte
	fail      bool
}

func (l *recordingListener) Deliver(kind protocol.Kind, data []byte) error {
	if l.fail {
		return errDeliveryFailed
	}
	l.delivered = append(l.delivered, data)
	return nil
}

var errDeliveryFailed = &deliveryError{}

type deliveryError struct{}

func (*deliveryError) Error() string { return "delivery failed" }

func TestConnectFailsForUnknownConversation(t *testing.T) {
	gdb := openTestDB(t)
	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))
	err := b.Connect(999, 1, "addr", &recordingListener{})
	require.Error(t, err)
}

func TestNewMessageDeliversLiveAndNotifiesOffline(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com", "b@example.com")

	notifier := &fakeNotifier{}
	b := New(gdb, notifier, logrus.NewEntry(logrus.New()))

	listener := &recordingListener{}
	require.NoError(t, b.Connect(convID, users[0], "addr1", listener))

	id, err := b.NewMessage(convID, users[0], []byte("hello"))
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Len(t, listener.delivered, 1)
	require.Equal(t, []uint{users[1]}, notifier.offline)

	var count int64
	gdb.Model(&adaptarrdb.ConversationEvent{}).Where("conversation_id = ?", convID).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestNewMessageDisconnectsFailingListener(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com")

	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))
	listener := &recordingListener{fail: true}
	require.NoError(t, b.Connect(convID, users[0], "addr1", listener))

	_, err := b.NewMessage(convID, users[0], []byte("hi"))
	require.NoError(t, err)

	b.mu.Lock()
	_, stillCached := b.conversations[convID]
	b.mu.Unlock()
	require.False(t, stillCached)
}

func TestNewMessageRejectsEmptyBody(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com")
	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))
	_, err := b.NewMessage(convID, users[0], nil)
	require.Error(t, err)
}

func TestGetHistoryReturnsLastWindowWhenFromIsNil(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com")
	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))

	for i := 0; i < 5; i++ {
		_, err := b.NewMessage(convID, users[0], []byte("msg"))
		require.NoError(t, err)
	}

	res, err := b.GetHistory(convID, nil, 3, 0)
	require.NoError(t, err)
	require.Len(t, res.Before, 3)
	require.Empty(t, res.After)
	require.Less(t, res.Before[0].ID, res.Before[1].ID)
}

func TestGetHistoryClampsTailQueryTo128(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com")
	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))

	for i := 0; i < 130; i++ {
		_, err := b.NewMessage(convID, users[0], []byte("msg"))
		require.NoError(t, err)
	}

	// Requesting more than 128 with no reference must clamp to 128, not 64.
	res, err := b.GetHistory(convID, nil, 200, 0)
	require.NoError(t, err)
	require.Len(t, res.Before, 128)
}

func TestGetHistoryClampsReferencedQueryTo64(t *testing.T) {
	gdb := openTestDB(t)
	convID, users := seedConversation(t, gdb, "a@example.com")
	b := New(gdb, &fakeNotifier{}, logrus.NewEntry(logrus.New()))

	var firstID uint
	for i := 0; i < 70; i++ {
		id, err := b.NewMessage(convID, users[0], []byte("msg"))
		require.NoError(t, err)
		if i == 0 {
			firstID = id
		}
	}

	// after=200 must clamp to (200+1).min(64) == 64, never 65 or more.
	res, err := b.GetHistory(convID, &firstID, 0, 200)
	require.NoError(t, err)
	require.Len(t, res.After, 64)
}
