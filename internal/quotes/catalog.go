package quotes

import "strings"

// Listing is a supported stock symbol or currency code with its display name.
type Listing struct {
	Code string
	Name string
}

var supportedStocks = []Listing{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc. (Google)"},
	{"AMZN", "Amazon.com Inc."},
	{"TSLA", "Tesla Inc."},
	{"META", "Meta Platforms Inc. (Facebook)"},
	{"NFLX", "Netflix Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"DIS", "Walt Disney Co."},
	{"BRK.B", "Berkshire Hathaway Inc."},
	{"JNJ", "Johnson & Johnson"},
	{"V", "Visa Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"BABA", "Alibaba Group"},
}

var supportedCurrencies = []Listing{
	{"USD", "United States Dollar"},
	{"EUR", "Euro"},
	{"GBP", "British Pound Sterling"},
	{"JPY", "Japanese Yen"},
	{"AUD", "Australian Dollar"},
	{"CAD", "Canadian Dollar"},
	{"CHF", "Swiss Franc"},
	{"CNY", "Chinese Yuan"},
	{"NZD", "New Zealand Dollar"},
	{"ZAR", "South African Rand"},
	{"KES", "Kenyan Shilling"},
	{"UGX", "Ugandan Shilling"},
	{"INR", "Indian Rupee"},
	{"BRL", "Brazilian Real"},
	{"MXN", "Mexican Peso"},
	{"NOK", "Norwegian Krone"},
	{"SEK", "Swedish Krona"},
	{"DKK", "Danish Krone"},
}

// SupportedStocks lists the symbols LatestPrice accepts, in display order.
func SupportedStocks() []Listing {
	return append([]Listing(nil), supportedStocks...)
}

// SupportedCurrencies lists the codes Rate accepts, in display order.
func SupportedCurrencies() []Listing {
	return append([]Listing(nil), supportedCurrencies...)
}

// normalize upper-cases code and reports whether it is listed.
func normalize(list []Listing, code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, l := range list {
		if l.Code == code {
			return code, true
		}
	}
	return code, false
}
