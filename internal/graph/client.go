package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mailscan/internal/auth"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	defaultPageSize = 100

	// Safety caps for count=0 (fetch everything) queries.
	maxMessagesPerFolder = 1000
	maxPagesPerQuery     = 100

	maxResponseBytes = 10 << 20
)

// selectFields keeps the payload down to what the table renders.
var selectFields = strings.Join([]string{
	"subject",
	"from",
	"toRecipients",
	"receivedDateTime",
	"parentFolderId",
}, ",")

// ClientOptions tunes a Client. The zero value targets the live Graph
// endpoint with a modest request pace.
type ClientOptions struct {
	BaseURL    string // overridable for tests
	HTTPClient *http.Client
	Limiter    *rate.Limiter // paces page requests; nil gets a default
	Logger     *slog.Logger
}

// Client is a raw REST client for the handful of Graph mail endpoints this
// tool touches. Failures are never retried; they surface immediately.
type Client struct {
	base    string
	hc      *http.Client
	src     auth.TokenSource
	limiter *rate.Limiter
	log     *slog.Logger

	folderIDs map[string]string // "<user>/<folder name, lowered>" -> folder id
}

// NewClient creates a Graph client using src for bearer tokens.
func NewClient(src auth.TokenSource, opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}
	c := &Client{
		base:      opts.BaseURL,
		hc:        opts.HTTPClient,
		src:       src,
		limiter:   opts.Limiter,
		log:       opts.Logger,
		folderIDs: make(map[string]string),
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 60 * time.Second}
	}
	if c.limiter == nil {
		// 4 requests/second is well under Graph's mailbox concurrency limits
		c.limiter = rate.NewLimiter(rate.Limit(4), 1)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Query describes a single messages request against one folder. Search and
// Filter are mutually exclusive; OrderBy is only valid alongside Filter
// because Graph rejects $orderby combined with $search.
type Query struct {
	Search   string // KQL expression, sent quoted as $search
	Filter   string // OData expression, sent as $filter
	OrderBy  string // $orderby clause, filter mode only
	Max      int    // stop after this many messages; 0 = per-folder caps only
	PageSize int    // $top; defaults to 100
}

// Messages fetches messages from one folder of one mailbox, following
// @odata.nextLink until the result bound, the page cap or the end of the
// collection. Errors come back as *QueryError except for token failures,
// which stay fatal.
func (c *Client) Messages(ctx context.Context, user, folderID string, q Query) ([]Message, error) {
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if q.Max > 0 && q.Max < size {
		size = q.Max
	}

	params := url.Values{}
	params.Set("$select", selectFields)
	params.Set("$top", strconv.Itoa(size))
	if q.Search != "" {
		params.Set("$search", `"`+q.Search+`"`)
	}
	if q.Filter != "" {
		params.Set("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		params.Set("$orderby", q.OrderBy)
	}

	next := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?%s",
		c.base, url.PathEscape(user), url.PathEscape(folderID), params.Encode())

	limit := maxMessagesPerFolder
	if q.Max > 0 && q.Max < limit {
		limit = q.Max
	}

	var out []Message
	for page := 0; next != "" && page < maxPagesPerQuery && len(out) < limit; page++ {
		c.log.Debug("fetching message page", "mailbox", user, "folder", folderID, "page", page+1)
		var resp messagesResponse
		if err := c.getJSON(ctx, next, &resp); err != nil {
			return nil, c.wrapQueryErr(user, folderID, err)
		}
		out = append(out, resp.Value...)
		next = resp.NextLink
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// getJSON performs one paced, authenticated GET and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.src.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func newStatusError(status int, body []byte) *statusError {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &statusError{
			StatusCode: status,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256] + "..."
	}
	return &statusError{StatusCode: status, Message: msg}
}

// wrapQueryErr attaches mailbox/folder context to a query failure. Token
// acquisition failures pass through untouched: without a token no query can
// succeed, so they abort the whole run rather than one folder.
func (c *Client) wrapQueryErr(user, folder string, err error) error {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	qe := &QueryError{Mailbox: user, Folder: folder, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		qe.StatusCode = se.StatusCode
		qe.Code = se.Code
		qe.Message = se.Message
	}
	return qe
}
