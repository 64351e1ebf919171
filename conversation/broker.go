package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"adaptarr.dev/apperror"
	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/protocol"
)

// KindMessage is the ConversationEvent.Kind recorded for a user-authored
// message; it is the only kind this broker currently produces.
const KindMessage = "message"

// OfflineNotifier is the narrow slice of events.Fanout the broker needs
// to reach members with no live listener.
type OfflineNotifier interface {
	NewMessageOffline(conversationID, authorID, recipientID uint, body string)
}

// Broker is the process-wide conversation broker ("Global mutable
// state"): one instance owns the in-memory membership/listener cache
// and is reached only through its own methods, never by direct map
// access from another goroutine.
type Broker struct {
	mu            sync.Mutex
	db            *gorm.DB
	notify        OfflineNotifier
	log           *logrus.Entry
	conversations map[uint]*conversationState
}

// New builds a Broker backed by db, delivering offline notifications
// through notify.
func New(db *gorm.DB, notify OfflineNotifier, log *logrus.Entry) *Broker {
	return &Broker{db: db, notify: notify, log: log, conversations: make(map[uint]*conversationState)}
}

// ensureLoaded returns the cached state for conversationID, loading its
// membership from the database on first reference. Must be called with
// b.mu held.
func (b *Broker) ensureLoaded(conversationID uint) (*conversationState, error) {
	if s, ok := b.conversations[conversationID]; ok {
		return s, nil
	}

	var exists int64
	if err := b.db.Model(&adaptarrdb.Conversation{}).Where("id = ?", conversationID).Count(&exists).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	if exists == 0 {
		return nil, apperror.ConversationNotFound()
	}

	var rows []adaptarrdb.ConversationMember
	if err := b.db.Where("conversation_id = ?", conversationID).Find(&rows).Error; err != nil {
		return nil, apperror.Internal(err)
	}
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}

	s := &conversationState{members: sortedMembers(ids)}
	b.conversations[conversationID] = s
	return s, nil
}

// Connect attaches conn as a live listener for userID on conversationID,
// loading membership from the database on the conversation's first
// activity. Fails ConversationNotFound if the conversation does not
// exist.
func (b *Broker) Connect(conversationID, userID uint, addr string, conn Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.ensureLoaded(conversationID)
	if err != nil {
		return err
	}
	s.insertListener(listenerEntry{userID: userID, addr: addr, conn: conn})
	return nil
}

// Disconnect removes the listener at addr from conversationID, evicting
// the conversation's cache entry once its listener list is empty.
func (b *Broker) Disconnect(conversationID uint, addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.conversations[conversationID]
	if !ok {
		return
	}
	s.removeListener(addr)
	if len(s.listeners) == 0 {
		delete(b.conversations, conversationID)
	}
}

// NewMessage validates body, persists it as a ConversationEvent, and
// fans it out: live members receive the typed event directly, offline
// members receive a persisted notification through the event fan-out. A
// listener that fails delivery is disconnected. Returns the new event's id
// so the caller can correlate it with subsequent history reads.
func (b *Broker) NewMessage(conversationID, userID uint, body []byte) (uint, error) {
	if err := validateBody(body); err != nil {
		return 0, err
	}

	var row adaptarrdb.ConversationEvent
	err := b.db.Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&adaptarrdb.Conversation{}).Where("id = ?", conversationID).Count(&exists).Error; err != nil {
			return apperror.Internal(err)
		}
		if exists == 0 {
			return apperror.ConversationNotFound()
		}
		row = adaptarrdb.ConversationEvent{
			ConversationID: conversationID,
			Kind:           KindMessage,
			CreatedAt:      time.Now(),
			AuthorID:       &userID,
			Data:           body,
		}
		if err := tx.Create(&row).Error; err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	b.fanOut(conversationID, userID, row, body)
	return row.ID, nil
}

// fanOut walks the conversation's members and live listeners in
// lock-step sorted order, delivering to every listener of a live member
// and persisting an offline notification for every member with none.
func (b *Broker) fanOut(conversationID, authorID uint, row adaptarrdb.ConversationEvent, body []byte) {
	b.mu.Lock()
	s, err := b.ensureLoaded(conversationID)
	if err != nil {
		b.mu.Unlock()
		b.log.WithError(err).WithField("conversation_id", conversationID).Warn("fan-out: failed to load conversation state")
		return
	}
	members := append([]uint(nil), s.members...)
	listeners := append([]listenerEntry(nil), s.listeners...)
	b.mu.Unlock()

	frame := protocol.EncodeNewMessage(protocol.NewMessageBody{
		ID:        int32(row.ID),
		User:      int32(authorID),
		Timestamp: row.CreatedAt.Unix(),
		Body:      body,
	})

	li := 0
	for _, member := range members {
		start := li
		for li < len(listeners) && listeners[li].userID == member {
			li++
		}
		if li == start {
			b.notify.NewMessageOffline(conversationID, authorID, member, string(body))
			continue
		}
		for _, l := range listeners[start:li] {
			if err := l.conn.Deliver(protocol.KindNewMessage, frame); err != nil {
				b.Disconnect(conversationID, l.addr)
			}
		}
	}
}

// HistoryResult is the response shape for GetHistory.
type HistoryResult struct {
	Before []adaptarrdb.ConversationEvent
	After  []adaptarrdb.ConversationEvent
}

// GetHistory resolves a history window around an optional reference event.
// With no reference, before is capped at 128 and after is unused (a tail
// read only goes backward). With a reference, before is capped at 64 and
// after+1 is capped at 64, so the window straddles the reference itself.
func (b *Broker) GetHistory(conversationID uint, from *uint, before, after uint16) (HistoryResult, error) {
	var out HistoryResult
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if from == nil {
			limit := before
			if limit > 128 {
				limit = 128
			}
			var rows []adaptarrdb.ConversationEvent
			if err := tx.Where("conversation_id = ?", conversationID).
				Order("id DESC").Limit(int(limit)).Find(&rows).Error; err != nil {
				return apperror.Internal(err)
			}
			reverse(rows)
			out.Before = rows
			return nil
		}

		if before > 64 {
			before = 64
		}
		afterLimit := after + 1
		if afterLimit > 64 {
			afterLimit = 64
		}

		var ref adaptarrdb.ConversationEvent
		if err := tx.First(&ref, *from).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BadHistoryReference()
			}
			return apperror.Internal(err)
		}

		var beforeRows []adaptarrdb.ConversationEvent
		if err := tx.Where("conversation_id = ? AND created_at < ?", conversationID, ref.CreatedAt).
			Order("created_at DESC").Limit(int(before)).Find(&beforeRows).Error; err != nil {
			return apperror.Internal(err)
		}
		reverse(beforeRows)

		var afterRows []adaptarrdb.ConversationEvent
		if err := tx.Where("conversation_id = ? AND created_at >= ?", conversationID, ref.CreatedAt).
			Order("created_at ASC").Limit(int(afterLimit)).Find(&afterRows).Error; err != nil {
			return apperror.Internal(err)
		}

		out.Before = beforeRows
		out.After = afterRows
		return nil
	})
	return out, err
}

func reverse(rows []adaptarrdb.ConversationEvent) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
