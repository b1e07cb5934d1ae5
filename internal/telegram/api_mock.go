package telegram

import (
	"context"
	"sync"
	"time"
)

// MockAPI implements API for testing without network access.
//
// Batches queues update batches returned by successive GetUpdates calls;
// once drained, GetUpdates returns empty batches. FetchErr, when set, is
// returned by every GetUpdates call instead.
type MockAPI struct {
	mu sync.Mutex

	Batches  [][]Update
	FetchErr error

	Sent         []SendMessageRequest
	SendErr      error
	NextMessage  Message
	Edited       []int64
	AnsweredIDs  []string
	FetchOffsets []int64
}

// NewMockAPI creates a new MockAPI instance.
func NewMockAPI() *MockAPI {
	return &MockAPI{}
}

// QueueBatch appends one batch of updates for a future GetUpdates call.
func (m *MockAPI) QueueBatch(updates ...Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Batches = append(m.Batches, updates)
}

// GetUpdates pops the next queued batch, filtered to ids >= offset.
func (m *MockAPI) GetUpdates(_ context.Context, offset int64, _ time.Duration) ([]Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchOffsets = append(m.FetchOffsets, offset)

	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	if len(m.Batches) == 0 {
		return nil, nil
	}

	batch := m.Batches[0]
	m.Batches = m.Batches[1:]

	var filtered []Update

	for _, u := range batch {
		if u.UpdateID >= offset {
			filtered = append(filtered, u)
		}
	}

	return filtered, nil
}

// SendMessage records the request and returns NextMessage.
func (m *MockAPI) SendMessage(_ context.Context, req SendMessageRequest) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return nil, m.SendErr
	}

	m.Sent = append(m.Sent, req)

	msg := m.NextMessage
	if msg.MessageID == 0 {
		msg.MessageID = int64(len(m.Sent))
	}

	if msg.Chat.ID == 0 {
		msg.Chat.ID = req.ChatID
	}

	return &msg, nil
}

// EditMessageText records the edited message id.
func (m *MockAPI) EditMessageText(_ context.Context, _, messageID int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Edited = append(m.Edited, messageID)

	return nil
}

// AnswerCallbackQuery records the acknowledged callback id.
func (m *MockAPI) AnswerCallbackQuery(_ context.Context, callbackID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AnsweredIDs = append(m.AnsweredIDs, callbackID)

	return nil
}

// SentCount returns how many messages were sent.
func (m *MockAPI) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Sent)
}
