package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/app"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/outbox"
	"github.com/ekdusrla/ssukssuk-closet/internal/status"
	"github.com/spf13/cobra"
)

var watchRoom string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for new messages and print client events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, runOptions{poll: true}, func(ctx context.Context, c *app.Client) error {
			if err := requireSignedIn(c); err != nil {
				return err
			}
			events, unsubscribe := c.Subscribe("", 256)
			defer unsubscribe()
			if watchRoom != "" {
				if _, err := c.OpenRoom(ctx, watchRoom); err != nil {
					warn(cmd, "open %s: %v", watchRoom, err)
				}
			}

			w := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-events:
					if err := printEvent(w, ev); err != nil {
						return err
					}
				}
			}
		})
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchRoom, "room", "r", "", "also refresh the room with this user")
}

type eventJSON struct {
	Time      time.Time `json:"time"`
	Namespace string    `json:"namespace"`
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
}

func printEvent(w io.Writer, ev bus.Event) error {
	summary, ok := describeEvent(ev)
	if !ok {
		return nil
	}
	if jsonOutput {
		b, err := json.Marshal(eventJSON{Time: ev.Timestamp, Namespace: ev.Namespace(), Kind: ev.Kind, Summary: summary})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %-32s %s\n", ev.Timestamp.Format(time.TimeOnly), ev.Kind, summary)
	return err
}

// describeEvent renders an event for a terminal line. Events without a
// readable payload are skipped.
func describeEvent(ev bus.Event) (string, bool) {
	switch p := ev.Payload.(type) {
	case status.StatusChange:
		return fmt.Sprintf("%s -> %s", p.From, p.To), true
	case conversation.LogChange:
		if len(p.Messages) == 0 {
			return p.CounterpartID + ": empty", true
		}
		last := p.Messages[len(p.Messages)-1]
		return fmt.Sprintf("%s: %d messages, last from %s (%s): %s",
			p.CounterpartID, len(p.Messages), last.AuthorID, last.State, clip(oneLine(last.Body), 40)), true
	case []conversation.Summary:
		unread := 0
		for _, s := range p {
			unread += s.UnreadCount
		}
		return fmt.Sprintf("%d rooms, %d unread", len(p), unread), true
	case outbox.Delivery:
		if p.Error != "" {
			return fmt.Sprintf("%s to %s: %s", p.MessageID, p.Counterpart, p.Error), true
		}
		return fmt.Sprintf("%s to %s", p.MessageID, p.Counterpart), true
	case string:
		return p, true
	case int:
		return fmt.Sprint(p), true
	}
	return "", false
}
