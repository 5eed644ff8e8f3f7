package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExpenseSyncMessage announces a newly stored expense to the mirror worker.
// Only the ID travels; the worker reads the rest from the database.
type ExpenseSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseSyncMessage(id int64) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, errors.New("missing expense id")
	}
	return &msg, nil
}

// InboundSMSMessage carries one raw notification text to the SMS worker.
type InboundSMSMessage struct {
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewInboundSMSMessage(text string) *InboundSMSMessage {
	return &InboundSMSMessage{
		Message:    text,
		ReceivedAt: time.Now().UTC(),
	}
}

func (m *InboundSMSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InboundSMSMessageFromJSON(data []byte) (*InboundSMSMessage, error) {
	var msg InboundSMSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix; the delivery is
// rejected without requeue.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
