package core

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted textual form of a calendar date.
const DateLayout = "2006-01-02"

// MaxNameLength caps category and merchant names, in characters.
const MaxNameLength = 128

type (
	// Date is a calendar date. The time component is always midnight UTC.
	Date struct {
		time.Time
	}

	// Transaction is a single dated spending record. Once created it is
	// never mutated.
	Transaction struct {
		Date     Date
		Category string
		Merchant string
		Amount   decimal.Decimal
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError(ReasonInvalidDate, "date", "")
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Within reports whether start <= d <= end.
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := ValidateName("category", t.Category); err != nil {
		return err
	}
	if err := ValidateName("merchant", t.Merchant); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return NewValidationError(ReasonInvalidAmount, "amount", t.Amount.String())
	}
	return nil
}

// Equal compares two transactions field by field, amounts numerically.
func (t Transaction) Equal(o Transaction) bool {
	return t.Date.Equal(o.Date.Time) &&
		t.Category == o.Category &&
		t.Merchant == o.Merchant &&
		t.Amount.Equal(o.Amount)
}

// ValidateName checks a category or merchant name for storage in a ledger
// line.
func ValidateName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return NewValidationError(ReasonEmptyField, field, v)
	}
	// The ledger file has no escaping.
	if strings.ContainsAny(v, Delimiter+"\r\n") {
		return NewValidationError(ReasonInvalidCharacter, field, v)
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return NewValidationError(ReasonTooLong, field, v)
	}
	return nil
}

var userIDPattern = regexp.MustCompile(`^\w{3,}$`)

// ValidUserID reports whether id is an acceptable user identity: three or
// more letters, digits or underscores. Ledger file names derive from it.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
