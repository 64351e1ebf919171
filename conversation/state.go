// Package conversation implements the conversation broker: an in-memory
// membership/listener cache over the durable ConversationEvent log, with
// live fan-out and offline notification through the event fan-out.
package conversation

import (
	"sort"

	"adaptarr.dev/protocol"
)

// Listener is a live, addressable connection able to receive a typed
// event frame. Gateway connections implement this and register one per
// (user, conversation) pair they are attached to.
type Listener interface {
	Deliver(kind protocol.Kind, data []byte) error
}

// listenerEntry is one live connection attached to a conversation,
// keyed by (user, addr) for the sorted lock-step fan-out walk.
type listenerEntry struct {
	userID uint
	addr   string
	conn   Listener
}

// conversationState is the broker's in-memory record for one
// conversation: its member set and its currently live listeners, both
// kept sorted by user id (listeners secondarily by addr) so fan-out can
// walk both lists in lock-step.
type conversationState struct {
	members   []uint
	listeners []listenerEntry
}

func (s *conversationState) insertListener(e listenerEntry) {
	i := sort.Search(len(s.listeners), func(i int) bool {
		if s.listeners[i].userID != e.userID {
			return s.listeners[i].userID > e.userID
		}
		return s.listeners[i].addr >= e.addr
	})
	s.listeners = append(s.listeners, listenerEntry{})
	copy(s.listeners[i+1:], s.listeners[i:])
	s.listeners[i] = e
}

func (s *conversationState) removeListener(addr string) (listenerEntry, bool) {
	for i, e := range s.listeners {
		if e.addr == addr {
			removed := e
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return removed, true
		}
	}
	return listenerEntry{}, false
}

// listenersFor returns the live listeners for userID, relying on the
// slice's sort-by-user_id ordering to binary-search the run.
func (s *conversationState) listenersFor(userID uint) []listenerEntry {
	lo := sort.Search(len(s.listeners), func(i int) bool { return s.listeners[i].userID >= userID })
	hi := sort.Search(len(s.listeners), func(i int) bool { return s.listeners[i].userID > userID })
	return s.listeners[lo:hi]
}

func sortedMembers(ids []uint) []uint {
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
