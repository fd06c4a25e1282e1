package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/app"
	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/outbox"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const envPassword = "SSUKCHAT_PASSWORD"

var (
	loginPassword string
	roomsSearch   string
	roomsCached   bool
	logCached     bool
	outboxLimit   int
)

var loginCmd = &cobra.Command{
	Use:   "login <nickname>",
	Short: "Sign in and load the conversation list",
	Long: "Sign in with a nickname and password. The password is read from --password,\n" +
		"then $" + envPassword + ", then prompted for.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		return withClient(cmd, runOptions{}, func(ctx context.Context, c *app.Client) error {
			if err := c.Login(ctx, args[0], password); err != nil {
				return err
			}
			me, _ := c.Me()
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"nickname": me,
					"status":   c.Status(),
					"rooms":    len(c.Summaries("")),
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%d rooms, %s).\n", me, len(c.Summaries("")), c.Status())
			return err
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the cached conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, runOptions{}, func(_ context.Context, c *app.Client) error {
			if err := c.Logout(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return err
		})
	},
}

type statusJSON struct {
	Profile     string `json:"profile"`
	Nickname    string `json:"nickname,omitempty"`
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Unread      int    `json:"unread"`
	LastRefresh string `json:"last_refresh,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the profile, user and cached conversation counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, runOptions{}, func(_ context.Context, c *app.Client) error {
			me, _ := c.Me()
			st := statusJSON{Profile: c.Profile(), Nickname: me, Status: string(c.Status())}
			for _, s := range c.Summaries("") {
				st.Rooms++
				st.Unread += s.UnreadCount
			}
			st.LastRefresh, _ = c.LastRefresh("")
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			w := newTable(cmd.OutOrStdout())
			_, _ = fmt.Fprintf(w, "Profile:\t%s\n", st.Profile)
			_, _ = fmt.Fprintf(w, "User:\t%s\n", dash(st.Nickname))
			_, _ = fmt.Fprintf(w, "Status:\t%s\n", st.Status)
			_, _ = fmt.Fprintf(w, "Rooms:\t%d (%d unread)\n", st.Rooms, st.Unread)
			_, _ = fmt.Fprintf(w, "Last refresh:\t%s\n", dash(st.LastRefresh))
			return w.Flush()
		})
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, runOptions{}, func(ctx context.Context, c *app.Client) error {
			if err := requireSignedIn(c); err != nil {
				return err
			}
			if !roomsCached {
				if err := c.RefreshRooms(ctx); err != nil {
					warn(cmd, "showing cached rooms: %v", err)
				}
			}
			return printRooms(cmd.OutOrStdout(), c.Summaries(roomsSearch), time.Now())
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log <nickname>",
	Short: "Show the messages exchanged with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, runOptions{}, func(ctx context.Context, c *app.Client) error {
			if err := requireSignedIn(c); err != nil {
				return err
			}
			log := c.Log(args[0])
			if !logCached {
				var err error
				if log, err = c.OpenRoom(ctx, args[0]); err != nil {
					warn(cmd, "showing cached messages: %v", err)
				}
			}
			me, _ := c.Me()
			return printLog(cmd.OutOrStdout(), log, me)
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <nickname> <text>...",
	Short: "Send a text message",
	Long:  "Send a text message. Remaining arguments are joined with spaces; use - to read the body from stdin.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := strings.Join(args[1:], " ")
		if body == "-" {
			b, err := readAll(cmd)
			if err != nil {
				return err
			}
			body = b
		}
		return withClient(cmd, runOptions{}, func(ctx context.Context, c *app.Client) error {
			id, err := c.Send(ctx, args[0], body)
			return reportDelivery(cmd, id, err)
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <message-id>",
	Short: "Resend a message that failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, runOptions{}, func(ctx context.Context, c *app.Client) error {
			id, err := c.Retry(ctx, args[0])
			return reportDelivery(cmd, id, err)
		})
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <file>",
	Short: "Check whether an image can be attached",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, runOptions{}, func(_ context.Context, c *app.Client) error {
			f, err := c.CheckAttachment(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"name": f.Name, "content_type": f.ContentType, "size": f.Size,
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d bytes, ok\n", f.Name, f.ContentType, f.Size)
			return err
		})
	},
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Show recent send attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, runOptions{}, func(_ context.Context, c *app.Client) error {
			entries, err := c.Outbox(outboxLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			w := newTable(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(w, "ID\tTO\tSTATUS\tUPDATED\tBODY")
			for _, e := range entries {
				status := e.Status
				if e.ErrorMessage != "" {
					status += ": " + clip(e.ErrorMessage, 32)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ClientMsgID, e.Counterpart, status,
					time.UnixMilli(e.UpdatedAt).Format(time.DateTime), clip(oneLine(e.Body), 32))
			}
			return w.Flush()
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted for when omitted)")
	roomsCmd.Flags().StringVarP(&roomsSearch, "search", "s", "", "only rooms whose nickname contains this")
	roomsCmd.Flags().BoolVar(&roomsCached, "cached", false, "do not refresh from the server")
	logCmd.Flags().BoolVar(&logCached, "cached", false, "do not refresh from the server")
	outboxCmd.Flags().IntVarP(&outboxLimit, "limit", "n", 20, "number of entries")

	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, roomsCmd, logCmd,
		sendCmd, retryCmd, attachCmd, outboxCmd, watchCmd)
}

func requireSignedIn(c *app.Client) error {
	if _, ok := c.Me(); !ok {
		return fmt.Errorf("%w: run ssukchat login first", auth.ErrNotAuthenticated)
	}
	return nil
}

// reportDelivery prints the outcome of a send or retry. A delivery failure
// still prints the id so the message can be retried.
func reportDelivery(cmd *cobra.Command, id string, err error) error {
	if id == "" || (err != nil && !errors.Is(err, outbox.ErrSendFailed)) {
		return err
	}
	state := "sent"
	if err != nil {
		state = "failed"
	}
	if jsonOutput {
		out := map[string]any{"id": id, "state": state}
		if err != nil {
			out["error"] = err.Error()
		}
		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		warn(cmd, "message %s not delivered; resend with: ssukchat retry %s", id, id)
		return err
	}
	_, perr := fmt.Fprintf(cmd.OutOrStdout(), "Sent %s.\n", id)
	return perr
}

func readPassword(cmd *cobra.Command) (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	if p, ok := os.LookupEnv(envPassword); ok {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readAll(cmd *cobra.Command) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read message body: %w", err)
	}
	return b.String(), nil
}

func warn(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", args...)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
