package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"mailscan/internal/auth"
)

// staticSource is a TokenSource that always returns the same token.
type staticSource string

func (s staticSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// failingSource simulates a fatal token acquisition failure.
type failingSource struct{ err error }

func (s failingSource) Token(ctx context.Context) (string, error) {
	return "", s.err
}

func newTestClient(t *testing.T, src auth.TokenSource, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client := NewClient(src, &ClientOptions{
		BaseURL: ts.URL,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
	return client, ts
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding mock response: %v", err)
	}
}

// pagedMessages serves pages of generated messages, wiring nextLink back to
// the test server itself.
func pagedMessages(t *testing.T, pages int, perPage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}

		resp := messagesResponse{}
		for i := 0; i < perPage; i++ {
			seq := (page-1)*perPage + i
			resp.Value = append(resp.Value, Message{
				ID:               fmt.Sprintf("msg-%d", seq),
				Subject:          fmt.Sprintf("subject %d", seq),
				ReceivedDateTime: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC).Add(-time.Duration(seq) * time.Minute),
			})
		}
		if page < pages {
			resp.NextLink = "http://" + r.Host + r.URL.Path + "?page=" + strconv.Itoa(page+1)
		}
		writeJSON(t, w, resp)
	}
}

func TestMessagesPagesThroughNextLink(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		pagedMessages(t, 3, 10)(w, r)
	}))

	msgs, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 30 {
		t.Errorf("Messages() returned %d messages, want all 30 across pages", len(msgs))
	}
	if requests != 3 {
		t.Errorf("server saw %d requests, want 3", requests)
	}
	if msgs[0].ID != "msg-0" || msgs[29].ID != "msg-29" {
		t.Errorf("pages concatenated out of order: first=%s last=%s", msgs[0].ID, msgs[29].ID)
	}
}

func TestMessagesStopsAtMax(t *testing.T) {
	var requests int
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		pagedMessages(t, 10, 10)(w, r)
	}))

	msgs, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{Max: 15, PageSize: 10})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 15 {
		t.Errorf("Messages() returned %d messages, want 15", len(msgs))
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want 2 (no pages past the bound)", requests)
	}
}

func TestMessagesRequestParams(t *testing.T) {
	t.Run("search mode", func(t *testing.T) {
		var got map[string]string
		client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			got = map[string]string{
				"$search":  q.Get("$search"),
				"$filter":  q.Get("$filter"),
				"$orderby": q.Get("$orderby"),
				"$select":  q.Get("$select"),
				"$top":     q.Get("$top"),
			}
			writeJSON(t, w, messagesResponse{})
		}))

		search := BuildSearch([]string{"a@acme.com", "b@corp.com"}, date(2024, 1, 1), date(2024, 1, 31))
		_, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{Search: search})
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}

		if want := `"` + search + `"`; got["$search"] != want {
			t.Errorf("$search = %q, want quoted expression %q", got["$search"], want)
		}
		if got["$orderby"] != "" {
			t.Errorf("$orderby = %q, must never be sent with $search", got["$orderby"])
		}
		if got["$filter"] != "" {
			t.Errorf("$filter = %q, want empty in search mode", got["$filter"])
		}
		if got["$select"] != selectFields {
			t.Errorf("$select = %q, want %q", got["$select"], selectFields)
		}
		if got["$top"] != "100" {
			t.Errorf("$top = %q, want default 100", got["$top"])
		}
	})

	t.Run("filter mode", func(t *testing.T) {
		var got map[string]string
		client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			got = map[string]string{
				"$search":  q.Get("$search"),
				"$filter":  q.Get("$filter"),
				"$orderby": q.Get("$orderby"),
			}
			writeJSON(t, w, messagesResponse{})
		}))

		filter := BuildFilter(date(2024, 1, 1), date(2024, 1, 31), "")
		_, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{
			Filter:  filter,
			OrderBy: "receivedDateTime desc",
		})
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}

		if got["$filter"] != filter {
			t.Errorf("$filter = %q, want %q", got["$filter"], filter)
		}
		if got["$orderby"] != "receivedDateTime desc" {
			t.Errorf("$orderby = %q, want %q", got["$orderby"], "receivedDateTime desc")
		}
		if got["$search"] != "" {
			t.Errorf("$search = %q, want empty in filter mode", got["$search"])
		}
	})
}

func TestMessagesSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, staticSource("my-token"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, messagesResponse{})
	}))

	if _, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{}); err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if gotAuth != "Bearer my-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer my-token")
	}
}

// Whatever senders come back stay in the result: sender matching belongs to
// the server-side query, never to a client-side pass afterwards.
func TestMessagesDoesNoClientSideSenderFiltering(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, messagesResponse{Value: []Message{
			{ID: "1", From: Recipient{EmailAddress{Address: "match@acme.com"}}},
			{ID: "2", From: Recipient{EmailAddress{Address: "unrelated@other.org"}}},
			{ID: "3", From: Recipient{EmailAddress{Address: "also-unrelated@elsewhere.net"}}},
		}})
	}))

	search := BuildSearch([]string{"acme.com"}, date(2024, 1, 1), date(2024, 1, 31))
	msgs, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{Search: search})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Errorf("Messages() returned %d messages, want all 3 the server sent", len(msgs))
	}
}

func TestMessagesErrorEnvelopeBecomesQueryError(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"ErrorAccessDenied","message":"Access is denied. Check credentials and try again."}}`)
	}))

	_, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{})

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("Messages() error = %v, want *QueryError", err)
	}
	if qe.StatusCode != http.StatusForbidden {
		t.Errorf("QueryError.StatusCode = %d, want 403", qe.StatusCode)
	}
	if qe.Code != "ErrorAccessDenied" {
		t.Errorf("QueryError.Code = %q, want ErrorAccessDenied", qe.Code)
	}
	if qe.Mailbox != "a@x.com" || qe.Folder != "inbox" {
		t.Errorf("QueryError context = %s/%s, want a@x.com/inbox", qe.Mailbox, qe.Folder)
	}
	if !strings.Contains(qe.Error(), "Access is denied") {
		t.Errorf("QueryError.Error() = %q, should carry the server message", qe.Error())
	}
}

func TestMessagesMalformedJSONBecomesQueryError(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [{"subject": "truncated...`)
	}))

	_, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{})

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("Messages() error = %v, want *QueryError for undecodable body", err)
	}
}

func TestMessagesAuthErrorStaysFatal(t *testing.T) {
	authErr := &auth.AuthError{StatusCode: 400, Body: "invalid_client"}
	client, _ := newTestClient(t, failingSource{err: authErr}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be reached without a token")
	}))

	_, err := client.Messages(context.Background(), "a@x.com", "inbox", Query{})

	var gotAuth *auth.AuthError
	if !errors.As(err, &gotAuth) {
		t.Fatalf("Messages() error = %v, want *auth.AuthError to pass through", err)
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		t.Error("token failure must not be downgraded to a *QueryError")
	}
}

func TestListFolders(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			writeJSON(t, w, foldersResponse{
				Value:    []Folder{{ID: "id-1", DisplayName: "Inbox"}, {ID: "id-2", DisplayName: "Projects"}},
				NextLink: "http://" + r.Host + r.URL.Path + "?page=2",
			})
			return
		}
		writeJSON(t, w, foldersResponse{
			Value: []Folder{{ID: "id-3", DisplayName: "Invoices"}},
		})
	}))

	folders, err := client.ListFolders(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ListFolders() error = %v", err)
	}
	if len(folders) != 3 {
		t.Fatalf("ListFolders() returned %d folders, want 3 across pages", len(folders))
	}
	if folders[2].DisplayName != "Invoices" {
		t.Errorf("last folder = %q, want Invoices", folders[2].DisplayName)
	}
}

func TestResolveFolderWellKnownAliases(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("well-known folder resolution must not call the API (got %s)", r.URL)
	}))

	tests := []struct {
		name string
		want string
	}{
		{"Inbox", "inbox"},
		{"inbox", "inbox"},
		{"Sent Items", "sentitems"},
		{"sent", "sentitems"},
		{"Deleted Items", "deleteditems"},
		{"Junk Email", "junkemail"},
		{"Archive", "archive"},
		{"Drafts", "drafts"},
		{"Outbox", "outbox"},
		{"  inbox  ", "inbox"},
	}

	for _, tt := range tests {
		got, err := client.ResolveFolder(context.Background(), "a@x.com", tt.name)
		if err != nil {
			t.Errorf("ResolveFolder(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveFolder(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolveFolderByDisplayName(t *testing.T) {
	var listings int
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listings++
		writeJSON(t, w, foldersResponse{Value: []Folder{
			{ID: "id-projects", DisplayName: "Projects"},
			{ID: "id-invoices", DisplayName: "Invoices"},
		}})
	}))

	got, err := client.ResolveFolder(context.Background(), "a@x.com", "projects")
	if err != nil {
		t.Fatalf("ResolveFolder() error = %v", err)
	}
	if got != "id-projects" {
		t.Errorf("ResolveFolder() = %q, want id-projects (case-insensitive match)", got)
	}

	// Second resolution of the same name must come from the cache
	if _, err := client.ResolveFolder(context.Background(), "a@x.com", "Projects"); err != nil {
		t.Fatalf("ResolveFolder() cached error = %v", err)
	}
	if listings != 1 {
		t.Errorf("folder list fetched %d times, want 1 (cache miss only)", listings)
	}
}

func TestResolveFolderNotFound(t *testing.T) {
	client, _ := newTestClient(t, staticSource("tok"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, foldersResponse{Value: []Folder{{ID: "id-1", DisplayName: "Inbox"}}})
	}))

	_, err := client.ResolveFolder(context.Background(), "a@x.com", "No Such Folder")

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("ResolveFolder() error = %v, want *QueryError", err)
	}
	if !strings.Contains(qe.Error(), "not found") {
		t.Errorf("QueryError.Error() = %q, should mention not found", qe.Error())
	}
}
