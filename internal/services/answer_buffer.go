package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/partyquiz/server/internal/models"
)

// AnswerBuffer collects submissions for the current question. Only the
// latest answer per device is kept (last write wins); the host drains the
// whole set once per question cycle. A record arriving during or after a
// drain belongs to the next cycle.
type AnswerBuffer struct {
	mu      sync.Mutex
	answers map[models.DeviceID]models.PendingAnswer
	order   []models.DeviceID // first-submission order
}

// NewAnswerBuffer creates an empty buffer
func NewAnswerBuffer() *AnswerBuffer {
	return &AnswerBuffer{
		answers: make(map[models.DeviceID]models.PendingAnswer),
	}
}

// Record buffers an answer, overwriting any unread answer from the same
// device.
func (b *AnswerBuffer) Record(deviceID models.DeviceID, teamName string, answer json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.answers[deviceID]; !exists {
		b.order = append(b.order, deviceID)
	}
	b.answers[deviceID] = models.PendingAnswer{
		DeviceID:    deviceID,
		TeamName:    teamName,
		Answer:      answer,
		SubmittedAt: time.Now().UTC(),
	}
}

// DrainAll returns every buffered answer in first-submission order and
// atomically clears the buffer.
func (b *AnswerBuffer) DrainAll() []models.PendingAnswer {
	b.mu.Lock()
	answers := b.answers
	order := b.order
	b.answers = make(map[models.DeviceID]models.PendingAnswer)
	b.order = nil
	b.mu.Unlock()

	out := make([]models.PendingAnswer, 0, len(answers))
	for _, deviceID := range order {
		out = append(out, answers[deviceID])
	}
	return out
}

// Len returns the number of buffered answers
func (b *AnswerBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.answers)
}
