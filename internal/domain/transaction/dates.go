package transaction

import "time"

// Date layouts accepted by ParseDate, tried in order. DD-MM-YYYY comes first
// because that is what the mobile clients historically send.
var dateLayouts = []string{
	"02-01-2006",
	"2006-01-02",
	time.RFC3339,
}

// ParseDate parses a transaction date tolerantly: DD-MM-YYYY, YYYY-MM-DD,
// then an RFC 3339 fallback, defaulting to now when nothing matches or the
// input is empty. The lenient fallback is deliberate: a transaction with a
// slightly wrong date is better than a rejected one.
func ParseDate(s string, now func() time.Time) time.Time {
	if s == "" {
		return now()
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return now()
}
