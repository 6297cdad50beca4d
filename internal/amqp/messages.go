package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// MemoSavedMessage announces that a user's record was rewritten. The worker
// reloads the full record, so the message only carries what identifies it.
type MemoSavedMessage struct {
	Username  string    `json:"username"`
	Year      int       `json:"year"`
	Roles     []string  `json:"roles"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMemoSavedMessage(username string, year int, roles []string) *MemoSavedMessage {
	return &MemoSavedMessage{
		Username:  username,
		Year:      year,
		Roles:     roles,
		Timestamp: time.Now(),
	}
}

func (m *MemoSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MemoSavedMessageFromJSON decodes a message and rejects one without a username.
func MemoSavedMessageFromJSON(data []byte) (*MemoSavedMessage, error) {
	var msg MemoSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Username == "" {
		return nil, errors.New("memo saved message without username")
	}
	return &msg, nil
}
