package conversation

import (
	"sync"

	"github.com/google/uuid"
)

// Manager defines the interface for high-level conversation management operations.
// A manager owns one session's transcript: an ordered, append-only list of
// messages that lives for the lifetime of the process.
type Manager interface {
	GetConversation() Conversation
	AppendMessages(msgs ...*Message)
	GetMessage(ID NodeID) (*Message, bool)
}

type ManagerImpl struct {
	mu             sync.RWMutex
	ConversationID uuid.UUID
	messages       Conversation
}

var _ Manager = (*ManagerImpl)(nil)

type ManagerOption func(*ManagerImpl)

func WithMessages(messages ...*Message) ManagerOption {
	return func(m *ManagerImpl) {
		m.AppendMessages(messages...)
	}
}

func WithConversationID(conversationID uuid.UUID) ManagerOption {
	return func(m *ManagerImpl) {
		m.ConversationID = conversationID
	}
}

func NewManager(options ...ManagerOption) *ManagerImpl {
	ret := &ManagerImpl{
		ConversationID: uuid.New(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (c *ManagerImpl) GetConversation() Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ret := make(Conversation, len(c.messages))
	copy(ret, c.messages)
	return ret
}

func (c *ManagerImpl) AppendMessages(msgs ...*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msgs...)
}

func (c *ManagerImpl) GetMessage(ID NodeID) (*Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, msg := range c.messages {
		if msg.ID == ID {
			return msg, true
		}
	}
	return nil, false
}
