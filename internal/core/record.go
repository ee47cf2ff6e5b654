package core

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Delimiter separates the fields of a ledger line.
const Delimiter = ","

const recordFields = 4

// ErrMalformedRecord is returned for a ledger line without exactly four fields.
var ErrMalformedRecord = errors.New("malformed record")

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Submission carries raw, unvalidated user input for one transaction.
type Submission struct {
	Category string
	Merchant string
	Amount   string
	Date     string // blank means today
}

// ParseDate parses a YYYY-MM-DD string into a valid calendar date.
func ParseDate(s string) (Date, error) {
	if !datePattern.MatchString(s) {
		return Date{}, NewValidationError(ReasonInvalidDate, "date", s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, NewValidationError(ReasonInvalidDate, "date", s)
	}
	return Date{Time: t}, nil
}

// ParseSubmission validates raw input in order: empty fields, field
// characters, amount, then date. A blank date becomes today.
func ParseSubmission(in Submission, today Date) (Transaction, error) {
	category := strings.TrimSpace(in.Category)
	merchant := strings.TrimSpace(in.Merchant)
	if err := ValidateName("category", category); err != nil {
		return Transaction{}, err
	}
	if err := ValidateName("merchant", merchant); err != nil {
		return Transaction{}, err
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}

	date := today
	if raw := strings.TrimSpace(in.Date); raw != "" {
		date, err = ParseDate(raw)
		if err != nil {
			return Transaction{}, err
		}
	}

	return Transaction{
		Date:     date,
		Category: category,
		Merchant: merchant,
		Amount:   amount,
	}, nil
}

// FormatRecord renders a transaction as one ledger line without the
// trailing newline.
func FormatRecord(t Transaction) string {
	return strings.Join([]string{
		t.Date.String(),
		t.Category,
		t.Merchant,
		t.Amount.String(),
	}, Delimiter)
}

// ParseRecord parses one ledger line. Lines that do not have exactly four
// fields yield ErrMalformedRecord; other problems yield a ValidationError.
func ParseRecord(line string) (Transaction, error) {
	parts := strings.Split(strings.TrimSpace(line), Delimiter)
	if len(parts) != recordFields {
		return Transaction{}, ErrMalformedRecord
	}

	date, err := ParseDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return Transaction{}, err
	}
	amountField := strings.TrimSpace(parts[3])
	amount, err := decimal.NewFromString(amountField)
	if err != nil || !amount.IsPositive() {
		return Transaction{}, NewValidationError(ReasonInvalidAmount, "amount", amountField)
	}

	t := Transaction{
		Date:     date,
		Category: strings.TrimSpace(parts[1]),
		Merchant: strings.TrimSpace(parts[2]),
		Amount:   amount,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
