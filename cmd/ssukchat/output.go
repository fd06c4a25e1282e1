package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/timestamp"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

type roomJSON struct {
	Counterpart   string    `json:"counterpart"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Unread        int       `json:"unread"`
}

func printRooms(w io.Writer, sums []conversation.Summary, now time.Time) error {
	if jsonOutput {
		out := make([]roomJSON, len(sums))
		for i, s := range sums {
			out[i] = roomJSON{s.CounterpartID, s.LastMessagePreview, s.LastMessageAt, s.UnreadCount}
		}
		return printJSON(w, out)
	}
	if len(sums) == 0 {
		_, err := fmt.Fprintln(w, "No conversations.")
		return err
	}
	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "NICKNAME\tNEW\tWHEN\tLAST MESSAGE")
	for _, s := range sums {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.CounterpartID,
			conversation.BadgeLabel(s.UnreadCount),
			timestamp.FormatRelative(s.LastMessageAt, now),
			clip(oneLine(s.LastMessagePreview), 48))
	}
	return tw.Flush()
}

type messageJSON struct {
	ID       string    `json:"id"`
	ServerID string    `json:"server_id,omitempty"`
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	State    string    `json:"state"`
	Local    bool      `json:"local"`
}

func printLog(w io.Writer, log []conversation.Message, me string) error {
	if jsonOutput {
		out := make([]messageJSON, len(log))
		for i, m := range log {
			out[i] = messageJSON{m.ID, m.ServerID, m.AuthorID, m.Body, m.SentAt, m.State.String(), m.Local}
		}
		return printJSON(w, out)
	}
	if len(log) == 0 {
		_, err := fmt.Fprintln(w, "No messages.")
		return err
	}
	lastDay := ""
	for _, m := range log {
		if day := m.SentAt.Format("2006. 1. 2."); day != lastDay {
			_, _ = fmt.Fprintf(w, "── %s ──\n", day)
			lastDay = day
		}
		marker := ""
		if m.AuthorID == me {
			switch m.State {
			case conversation.Pending:
				marker = " (sending)"
			case conversation.Failed:
				marker = " (failed, retry " + m.ID + ")"
			}
		}
		_, _ = fmt.Fprintf(w, "%s %s%s\n", timestamp.Format(m.SentAt), m.AuthorID, marker)
		for _, line := range strings.Split(m.Body, "\n") {
			_, _ = fmt.Fprintf(w, "    %s\n", line)
		}
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

