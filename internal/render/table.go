// Package render formats merged scan results as a fixed-width table, CSV or
// JSON. Rendering never reorders or drops messages; it only displays them.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"mailscan/internal/graph"
)

// Column caps for the table. Longer values are cut with a "..." marker so one
// oversized subject cannot wreck the layout.
const (
	colIndex   = 4
	colTime    = 19
	colMailbox = 24
	colFolder  = 14
	colFrom    = 30
	colTo      = 30
	colSubject = 40
)

const timeLayout = "2006-01-02 15:04:05"

// Options tunes display-only aspects of rendering.
type Options struct {
	// Location is the display timezone; nil renders in UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.UTC
}

// Table writes the messages as a fixed-width table with a count footer.
func Table(w io.Writer, msgs []graph.Message, opts Options) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages found.")
		return
	}

	loc := opts.location()

	fmt.Fprintf(w, "%-*s %-*s %-*s %-*s %-*s %-*s %s\n",
		colIndex, "#",
		colTime, "Received",
		colMailbox, "Mailbox",
		colFolder, "Folder",
		colFrom, "From",
		colTo, "To",
		"Subject")
	fmt.Fprintf(w, "%-*s %-*s %-*s %-*s %-*s %-*s %s\n",
		colIndex, rule(colIndex),
		colTime, rule(colTime),
		colMailbox, rule(colMailbox),
		colFolder, rule(colFolder),
		colFrom, rule(colFrom),
		colTo, rule(colTo),
		rule(colSubject))

	for i, m := range msgs {
		fmt.Fprintf(w, "%-*d %-*s %-*s %-*s %-*s %-*s %s\n",
			colIndex, i+1,
			colTime, m.ReceivedDateTime.In(loc).Format(timeLayout),
			colMailbox, truncate(m.Mailbox, colMailbox),
			colFolder, truncate(m.Folder, colFolder),
			colFrom, truncate(m.Sender(), colFrom),
			colTo, truncate(m.Recipients(), colTo),
			truncate(m.Subject, colSubject))
	}

	fmt.Fprintf(w, "\nTotal messages: %d\n", len(msgs))
}

func rule(n int) string {
	return strings.Repeat("-", n)
}

// truncate cuts s to max characters, marking the cut with "...".
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
