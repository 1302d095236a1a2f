package journal

import (
	"encoding/json"
	"time"
)

// Entry records one committed ledger operation
type Entry struct {
	// offset in the journal, assigned on append
	Offset        uint64    `json:"offset"`
	Op            string    `json:"op"`
	TransactionID string    `json:"transaction_id"`
	SenderID      string    `json:"sender_id,omitempty"`
	ReceiverID    string    `json:"receiver_id,omitempty"`
	Amount        string    `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e *Entry) marshal() ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEntry(b []byte) (*Entry, error) {
	entry := &Entry{}
	if err := json.Unmarshal(b, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
