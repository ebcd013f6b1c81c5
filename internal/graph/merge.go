package graph

import "sort"

// SortMessages stably orders messages by receivedDateTime, newest first for
// OrderLatest and oldest first for OrderEarliest. Stability keeps the fetch
// order for messages received at the same instant.
func SortMessages(msgs []Message, order Order) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if order == OrderEarliest {
			return msgs[i].ReceivedDateTime.Before(msgs[j].ReceivedDateTime)
		}
		return msgs[i].ReceivedDateTime.After(msgs[j].ReceivedDateTime)
	})
}

// Truncate bounds the merged result set. n <= 0 means no bound.
func Truncate(msgs []Message, n int) []Message {
	if n > 0 && len(msgs) > n {
		return msgs[:n]
	}
	return msgs
}
