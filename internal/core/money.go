// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user-entered amounts and
// formatting amounts for display and storage. All arithmetic is exact
// decimal arithmetic; rounding happens only when formatting for display.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	groupedAmount = regexp.MustCompile(`^\d{1,3}(,\d{3}){0,4}(\.\d{1,2})?$`)
	plainAmount   = regexp.MustCompile(`^\d{1,15}(\.\d{1,2})?$`)
)

// ParseAmount converts a user-entered amount to a positive decimal.
//
// Accepted forms are digit groups of exactly three separated by commas
// (1,234.56) or plain digits (1234.56), each with an optional fractional
// part of one or two digits. The integer part has at most 15 digits.
// Grouping commas are stripped before conversion.
//
// Examples:
//
//	ParseAmount("1,234.56") -> 1234.56, nil
//	ParseAmount("1000")     -> 1000, nil
//	ParseAmount("12,34")    -> error (bad grouping)
//	ParseAmount("-5")       -> error (not positive)
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if !groupedAmount.MatchString(s) && !plainAmount.MatchString(s) {
		return decimal.Zero, NewValidationError(ReasonInvalidAmount, "amount", raw)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, NewValidationError(ReasonInvalidAmount, "amount", raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, NewValidationError(ReasonInvalidAmount, "amount", raw)
	}
	return d, nil
}

// FormatAmount renders an amount rounded to two fractional digits, without
// grouping separators.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatMoney renders an amount for display, e.g. "$12.50".
func FormatMoney(d decimal.Decimal) string {
	return "$" + FormatAmount(d)
}

// Sum adds amounts without intermediate rounding.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
