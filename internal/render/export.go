package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"mailscan/internal/graph"
)

var csvHeader = []string{"Received", "Mailbox", "Folder", "From", "To", "Subject"}

// WriteCSV exports the messages untruncated, one row per message.
func WriteCSV(w io.Writer, msgs []graph.Message, opts Options) error {
	loc := opts.location()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, m := range msgs {
		row := []string{
			m.ReceivedDateTime.In(loc).Format(timeLayout),
			m.Mailbox,
			m.Folder,
			m.Sender(),
			m.Recipients(),
			m.Subject,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// messageView is the JSON shape of one rendered message.
type messageView struct {
	Received string `json:"received"`
	Mailbox  string `json:"mailbox"`
	Folder   string `json:"folder"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
}

type resultView struct {
	Count    int           `json:"count"`
	Messages []messageView `json:"messages"`
}

// JSON writes the messages as an indented JSON document.
func JSON(w io.Writer, msgs []graph.Message, opts Options) error {
	loc := opts.location()

	view := resultView{
		Count:    len(msgs),
		Messages: make([]messageView, 0, len(msgs)),
	}
	for _, m := range msgs {
		view.Messages = append(view.Messages, messageView{
			Received: m.ReceivedDateTime.In(loc).Format(timeLayout),
			Mailbox:  m.Mailbox,
			Folder:   m.Folder,
			From:     m.Sender(),
			To:       m.Recipients(),
			Subject:  m.Subject,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
