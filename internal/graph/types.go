// Package graph queries Microsoft Graph for mail messages across mailboxes
// and folders, pages through results and merges them into one ordered set.
package graph

import (
	"fmt"
	"strings"
	"time"
)

// EmailAddress is the Graph emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient wraps an email address the way Graph nests it under from and
// toRecipients.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// Message is the subset of the Graph message resource this tool selects.
// Mailbox and Folder are annotations added during the scan fan-out; they are
// not part of the wire payload.
type Message struct {
	ID               string      `json:"id,omitempty"`
	Subject          string      `json:"subject"`
	From             Recipient   `json:"from"`
	ToRecipients     []Recipient `json:"toRecipients"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
	ParentFolderID   string      `json:"parentFolderId,omitempty"`

	Mailbox string `json:"-"`
	Folder  string `json:"-"`
}

// Sender returns the sender address, or the display name when the address is
// empty (some system messages carry only a name).
func (m Message) Sender() string {
	if m.From.EmailAddress.Address != "" {
		return m.From.EmailAddress.Address
	}
	return m.From.EmailAddress.Name
}

// Recipients returns the To addresses joined with "; ".
func (m Message) Recipients() string {
	addrs := make([]string, 0, len(m.ToRecipients))
	for _, r := range m.ToRecipients {
		if r.EmailAddress.Address != "" {
			addrs = append(addrs, r.EmailAddress.Address)
		}
	}
	return strings.Join(addrs, "; ")
}

// Folder is a mail folder as returned by the mailFolders endpoint.
type Folder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// messagesResponse is the Graph collection envelope for messages.
type messagesResponse struct {
	Value    []Message `json:"value"`
	NextLink string    `json:"@odata.nextLink,omitempty"`
}

// foldersResponse is the Graph collection envelope for mail folders.
type foldersResponse struct {
	Value    []Folder `json:"value"`
	NextLink string   `json:"@odata.nextLink,omitempty"`
}

// errorResponse is the Graph error envelope.
type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryError reports a failed (mailbox, folder) query. It is non-fatal: the
// scan records it and moves on to the remaining queries.
type QueryError struct {
	Mailbox    string
	Folder     string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *QueryError) Error() string {
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("query %s/%s failed: HTTP %d %s: %s", e.Mailbox, e.Folder, e.StatusCode, e.Code, detail)
	}
	return fmt.Sprintf("query %s/%s failed: %s", e.Mailbox, e.Folder, detail)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// statusError carries a non-200 Graph response before the mailbox/folder
// context is attached.
type statusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}
