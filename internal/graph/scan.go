package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Mode selects how the server-side query is expressed.
type Mode string

const (
	// ModeSearch uses a KQL $search expression; Graph handles sender and
	// date matching and no $orderby is sent (Graph rejects the pair).
	ModeSearch Mode = "search"
	// ModeFilter uses $filter on receivedDateTime with $orderby; sender
	// matching uses one exact-address query per sender.
	ModeFilter Mode = "filter"
)

// Order is the merge sort direction.
type Order string

const (
	OrderLatest   Order = "latest"   // newest first (default)
	OrderEarliest Order = "earliest" // oldest first
)

// ScanSpec describes one scan run across mailboxes and folders.
type ScanSpec struct {
	Users    []string
	Folders  []string
	Senders  []string  // from: terms (search) or exact addresses (filter)
	Start    time.Time // inclusive range start, midnight UTC
	End      time.Time // inclusive range end date
	Count    int       // bound per query and on the merged output; 0 = all
	Order    Order
	Mode     Mode
	PageSize int
}

// Result is the outcome of a scan: the merged messages plus the queries that
// failed along the way.
type Result struct {
	Messages []Message
	Failures []*QueryError
}

// Scanner fans a ScanSpec out over every (user, folder) pair, sequentially.
// A failed pair is recorded and skipped; the rest of the run continues.
type Scanner struct {
	client *Client
	log    *slog.Logger

	// Audit, when set, is called once per (user, folder) query with the
	// fetch outcome. Used for the CSV audit log.
	Audit func(user, folder string, fetched int, err error)
}

// NewScanner creates a scanner on top of an existing client.
func NewScanner(client *Client, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{client: client, log: logger}
}

// Run executes the scan. Only token acquisition and context errors abort it;
// per-query failures end up in Result.Failures. The returned messages are
// merged, stably sorted by receivedDateTime and truncated to spec.Count.
func (s *Scanner) Run(ctx context.Context, spec ScanSpec) (*Result, error) {
	res := &Result{}

	for _, user := range spec.Users {
		for _, folder := range spec.Folders {
			msgs, err := s.scanFolder(ctx, user, folder, spec)
			if s.Audit != nil {
				s.Audit(user, folder, len(msgs), err)
			}
			if err != nil {
				var qe *QueryError
				if errors.As(err, &qe) {
					s.log.Warn("folder query failed, continuing",
						"mailbox", user, "folder", folder, "error", err)
					res.Failures = append(res.Failures, qe)
					continue
				}
				return nil, err
			}
			s.log.Debug("folder scanned", "mailbox", user, "folder", folder, "messages", len(msgs))
			res.Messages = append(res.Messages, msgs...)
		}
	}

	SortMessages(res.Messages, spec.Order)
	res.Messages = Truncate(res.Messages, spec.Count)
	return res, nil
}

func (s *Scanner) scanFolder(ctx context.Context, user, folder string, spec ScanSpec) ([]Message, error) {
	id, err := s.client.ResolveFolder(ctx, user, folder)
	if err != nil {
		return nil, err
	}

	var out []Message
	for _, q := range buildQueries(spec) {
		msgs, err := s.client.Messages(ctx, user, id, q)
		if err != nil {
			return nil, err
		}
		// Annotate with the source pair; folder keeps the name the user
		// asked for, not the opaque id
		for i := range msgs {
			msgs[i].Mailbox = user
			msgs[i].Folder = folder
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// buildQueries expands a spec into the per-folder queries it implies. Search
// mode always needs exactly one; filter mode needs one per sender because
// the from/emailAddress/address clause matches a single exact address.
func buildQueries(spec ScanSpec) []Query {
	if spec.Mode != ModeFilter {
		return []Query{{
			Search:   BuildSearch(spec.Senders, spec.Start, spec.End),
			Max:      spec.Count,
			PageSize: spec.PageSize,
		}}
	}

	orderBy := "receivedDateTime desc"
	if spec.Order == OrderEarliest {
		orderBy = "receivedDateTime asc"
	}

	if len(spec.Senders) == 0 {
		return []Query{{
			Filter:   BuildFilter(spec.Start, spec.End, ""),
			OrderBy:  orderBy,
			Max:      spec.Count,
			PageSize: spec.PageSize,
		}}
	}

	queries := make([]Query, 0, len(spec.Senders))
	for _, sender := range spec.Senders {
		queries = append(queries, Query{
			Filter:   BuildFilter(spec.Start, spec.End, sender),
			OrderBy:  orderBy,
			Max:      spec.Count,
			PageSize: spec.PageSize,
		})
	}
	return queries
}
