package graph

import (
	"strings"
	"time"
)

// kqlDate is the date layout KQL comparisons use.
const kqlDate = "2006-01-02"

// BuildSearch returns the KQL $search expression for a sender/date query:
//
//	(from:a OR from:b) AND received>=2024-01-01 AND received<=2024-01-31
//
// Sender matching is fully delegated to Graph; nothing is filtered
// client-side afterwards. Zero time bounds omit their clause.
func BuildSearch(senders []string, start, end time.Time) string {
	var parts []string

	switch len(senders) {
	case 0:
	case 1:
		parts = append(parts, "from:"+senders[0])
	default:
		terms := make([]string, len(senders))
		for i, s := range senders {
			terms[i] = "from:" + s
		}
		parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	}

	if !start.IsZero() {
		parts = append(parts, "received>="+start.Format(kqlDate))
	}
	if !end.IsZero() {
		parts = append(parts, "received<="+end.Format(kqlDate))
	}

	return strings.Join(parts, " AND ")
}

// BuildFilter returns the OData $filter expression for filter-mode queries.
// start is taken as given (midnight UTC for a bare date); end is widened to
// the last second of its day so the range stays inclusive. An optional exact
// sender address adds a from/emailAddress/address clause.
func BuildFilter(start, end time.Time, sender string) string {
	var parts []string

	if !start.IsZero() {
		parts = append(parts, "receivedDateTime ge "+start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		endOfDay := end.UTC().Add(24*time.Hour - time.Second)
		parts = append(parts, "receivedDateTime le "+endOfDay.Format(time.RFC3339))
	}
	if sender != "" {
		parts = append(parts, "from/emailAddress/address eq '"+sender+"'")
	}

	return strings.Join(parts, " and ")
}
