package amqp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// TransactionCommittedEvent announces a transaction that was committed to a
// user's ledger. Amount keeps the ledger's exact decimal text.
type TransactionCommittedEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Category  string    `json:"category"`
	Merchant  string    `json:"merchant"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionCommittedEvent(userID string, t core.Transaction) *TransactionCommittedEvent {
	return &TransactionCommittedEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      t.Date.String(),
		Category:  t.Category,
		Merchant:  t.Merchant,
		Amount:    t.Amount.String(),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *TransactionCommittedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCommittedEventFromJSON(data []byte) (*TransactionCommittedEvent, error) {
	var msg TransactionCommittedEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Transaction rebuilds the committed transaction from the event payload.
func (m *TransactionCommittedEvent) Transaction() (core.Transaction, error) {
	return core.ParseRecord(strings.Join([]string{m.Date, m.Category, m.Merchant, m.Amount}, core.Delimiter))
}
