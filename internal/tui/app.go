// Package tui is the terminal client: a stack of pages over app.Client,
// redrawn from client events.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	chatapp "github.com/ekdusrla/ssukssuk-closet/internal/app"
	"github.com/ekdusrla/ssukssuk-closet/internal/bus"
	"github.com/ekdusrla/ssukssuk-closet/internal/conversation"
	"github.com/ekdusrla/ssukssuk-closet/internal/outbox"
	"github.com/ekdusrla/ssukssuk-closet/internal/status"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/keys"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/views"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageLogin = "login"
	pageRooms = "rooms"
	pageRoom  = "room"
	pageInfo  = "info"
	pageHelp  = "help"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	client   *chatapp.Client
	logger   *zap.Logger
	theme    *ui.Theme
	registry *keys.Registry

	root     *tview.Flex
	pages    *ui.Pages
	profile  *ui.ProfileInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flash    *ui.Flash
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	login    *views.LoginView
	rooms    *views.ConversationList
	thread   *views.MessageThread
	roomInfo *views.RoomInfo
	help     *views.HelpView
	byPage   map[string]ui.Component

	query string
	now   func() time.Time
	ctx   context.Context
}

// NewApp creates the TUI application.
func NewApp(c *chatapp.Client, logger *zap.Logger) *App {
	theme := ui.DefaultTheme()
	a := &App{
		app:      tview.NewApplication(),
		client:   c,
		logger:   logger,
		theme:    theme,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		profile:  ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme, 5),
		crumbs:   ui.NewCrumbs(theme),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		login:    views.NewLoginView(theme),
		rooms:    views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		roomInfo: views.NewRoomInfo(theme),
		help:     views.NewHelpView(theme),
		now:      time.Now,
		ctx:      context.Background(),
	}
	a.flash = ui.NewFlash(func() { a.flashBar.Update(a.flash.Current()) })
	a.byPage = map[string]ui.Component{
		pageLogin: a.login,
		pageRooms: a.rooms,
		pageRoom:  a.thread,
		pageInfo:  a.roomInfo,
		pageHelp:  a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(
		keys.Key(tcell.KeyEscape, "esc", "back", a.back),
		keys.Rune(':', "command", func() { a.showPrompt(ui.PromptCommand) }),
		keys.Key(tcell.KeyCtrlR, "ctrl-r", "refresh", a.refresh),
		keys.Rune('?', "help", a.showHelp),
	)

	a.registry.AddView(pageRooms,
		keys.Key(tcell.KeyEnter, "enter", "open", func() { a.openRoom(a.rooms.Selected()) }),
		keys.Rune('/', "search", func() { a.showPrompt(ui.PromptSearch) }),
		keys.Rune('q', "quit", a.app.Stop),
	)
	for n := 1; n <= 9; n++ {
		jump := keys.Rune(rune('0'+n), "", func() { a.openRoom(a.rooms.ByIndex(n)) })
		if n == 1 {
			jump.Label, jump.Hint = "1-9", "jump"
		}
		a.registry.AddView(pageRooms, jump)
	}

	a.registry.AddView(pageRoom,
		keys.Key(tcell.KeyTab, "tab", "log/compose", a.toggleThreadFocus),
		keys.Rune('r', "retry", a.retry),
		keys.Rune('d', "details", a.showInfo),
	)
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		trail := make([]string, len(stack))
		for i, name := range stack {
			trail[i] = a.byPage[name].Name()
		}
		a.crumbs.Update(trail)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})

	a.login.SetOnSubmit(a.signIn)
	a.rooms.SetOnOpen(a.openRoom)
	a.thread.SetOnSend(a.send)

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptSearch {
			a.query = text
			a.renderRooms()
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand && text != "" {
			a.execute(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptSearch {
			a.query = ""
			a.renderRooms()
		}
		a.hidePrompt()
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageLogin, a.login)
	a.pages.Add(pageRooms, a.rooms)
	a.pages.Add(pageRoom, a.thread)
	a.pages.Add(pageInfo, a.roomInfo)
	a.pages.Add(pageHelp, a.help)

	header := tview.NewFlex().
		AddItem(a.profile, 0, 1, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)
	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}
		page := a.pages.Current()
		focus := a.app.GetFocus()
		if page == pageLogin || a.prompt.HasFocus() {
			return ev
		}
		// Printable keys belong to the composer while it has focus.
		if focus == a.thread.Composer() && ev.Key() == tcell.KeyRune {
			return ev
		}
		if a.registry.HandleEvent(page, ev) {
			return nil
		}
		return ev
	})
}

// Run shows the UI until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	a.help.Update([]views.HelpSection{
		{Title: "Everywhere", Hints: a.registry.Hints("")},
		{Title: "Rooms", Hints: a.registry.ViewHints(pageRooms)},
		{Title: "Room", Hints: append(a.registry.ViewHints(pageRoom),
			ui.MenuHint{Key: "enter", Description: "send"},
			ui.MenuHint{Key: "alt-enter", Description: "new line"})},
		{Title: "Commands", Hints: CommandHints()},
	})

	if _, ok := a.client.Me(); ok {
		a.pages.Reset(pageRooms)
		a.renderRooms()
	} else {
		a.showLogin()
	}
	a.renderHeader()

	go a.watch(ctx)
	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()
	return a.app.Run()
}

// watch redraws on client events and expires flash messages.
func (a *App) watch(ctx context.Context) {
	events, unsubscribe := a.client.Subscribe("", 256)
	defer unsubscribe()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			a.app.QueueUpdateDraw(func() { a.handleEvent(ev) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Current())
			})
		}
	}
}

func (a *App) handleEvent(ev bus.Event) {
	switch ev.Kind {
	case "conversation.summaries_replaced", "conversation.hydrated", "conversation.reset":
		a.renderRooms()
	case "conversation.log_changed":
		if change, ok := ev.Payload.(conversation.LogChange); ok && change.CounterpartID == a.thread.Room() {
			a.renderThread()
		}
	case "auth.signed_out":
		if a.pages.Current() != pageLogin {
			a.flash.Warn("signed out, sign in again")
			a.showLogin()
		}
	case "message.send_failed":
		if d, ok := ev.Payload.(outbox.Delivery); ok {
			a.flash.Warn(fmt.Sprintf("message to %s not sent: %s", d.Counterpart, d.Error))
		}
	case "sync.failed":
		if msg, ok := ev.Payload.(string); ok {
			a.flash.Warn("refresh failed: " + msg)
		}
	case "client.status_changed":
		if sc, ok := ev.Payload.(status.StatusChange); ok {
			a.logger.Debug("status changed", zap.String("from", string(sc.From)), zap.String("to", string(sc.To)))
		}
	}
	a.renderHeader()
}

func (a *App) execute(text string) {
	cmd, err := ParseCommand(text)
	if err != nil {
		a.flash.Err(err)
		return
	}
	switch cmd.Name {
	case "quit":
		a.app.Stop()
	case "logout":
		a.logout()
	case "chat":
		a.openRoom(cmd.Args)
	case "refresh":
		a.refresh()
	case "retry":
		a.retry()
	case "attach":
		a.attach(cmd.Args)
	case "info":
		a.showInfo()
	case "help":
		a.showHelp()
	}
}

func (a *App) signIn(nickname, password string) {
	a.login.SetBusy(true)
	go func() {
		err := a.client.Login(a.ctx, nickname, password)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.login.ShowError(err)
				return
			}
			a.login.Reset()
			a.query = ""
			a.pages.Reset(pageRooms)
			a.app.SetFocus(a.rooms)
			a.renderRooms()
			a.renderHeader()
			a.flash.Info("signed in as " + conversation.NormalizeNickname(nickname))
		})
	}()
}

func (a *App) logout() {
	if err := a.client.Logout(); err != nil {
		a.flash.Err(err)
	}
	a.showLogin()
}

func (a *App) showLogin() {
	a.hidePrompt()
	a.thread.SetRoom("")
	a.login.Reset()
	a.pages.Reset(pageLogin)
	a.app.SetFocus(a.login)
}

func (a *App) openRoom(counterpart string) {
	counterpart = conversation.NormalizeNickname(counterpart)
	if counterpart == "" {
		return
	}
	if me, ok := a.client.Me(); !ok {
		a.showLogin()
		return
	} else if counterpart == me {
		a.flash.Warn("you cannot chat with yourself")
		return
	}

	a.thread.SetRoom(counterpart)
	a.renderThread()
	a.pages.Push(pageRoom)
	a.app.SetFocus(a.thread.Composer())

	go func() {
		_, err := a.client.OpenRoom(a.ctx, counterpart)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash.Err(err)
			}
			a.renderThread()
		})
	}()
}

func (a *App) send(body string) {
	room := a.thread.Room()
	go func() {
		_, err := a.client.Send(a.ctx, room, body)
		// Delivery failures arrive as message.send_failed.
		if err != nil && !errors.Is(err, outbox.ErrSendFailed) {
			a.app.QueueUpdateDraw(func() { a.flash.Err(err) })
		}
	}()
}

func (a *App) retry() {
	id, ok := a.thread.LatestFailed()
	if !ok {
		a.flash.Info("nothing to resend")
		return
	}
	go func() {
		_, err := a.client.Retry(a.ctx, id)
		if err != nil && !errors.Is(err, outbox.ErrSendFailed) {
			a.app.QueueUpdateDraw(func() { a.flash.Err(err) })
		}
	}()
}

func (a *App) refresh() {
	a.flash.Info("refreshing…")
	go func() {
		if err := a.client.Sync(a.ctx); err == nil {
			a.app.QueueUpdateDraw(func() { a.flash.Info("up to date") })
		}
	}()
}

func (a *App) attach(path string) {
	f, err := a.client.CheckAttachment(path)
	if err != nil {
		a.flash.Err(err)
		return
	}
	a.flash.Infof("%s: %s, %s, ready to attach", f.Name, f.ContentType, humanSize(f.Size))
}

func (a *App) showInfo() {
	room := a.thread.Room()
	if room == "" {
		a.flash.Warn("no room open")
		return
	}
	d := views.RoomDetails{Counterpart: room, Log: a.client.Log(room)}
	if v, ok := a.client.LastRefresh(room); ok {
		d.LastRefresh = formatCheckpoint(v)
	}
	for _, s := range a.client.Summaries("") {
		if s.CounterpartID == room {
			d.Unread = s.UnreadCount
		}
	}
	a.roomInfo.Update(d)
	a.pages.Push(pageInfo)
	a.app.SetFocus(a.roomInfo)
}

func (a *App) showHelp() {
	a.pages.Push(pageHelp)
	a.app.SetFocus(a.help)
}

func (a *App) back() {
	switch a.pages.Current() {
	case pageRooms:
		if a.query != "" {
			a.query = ""
			a.renderRooms()
		}
		return
	case pageRoom:
		a.client.CloseRoom()
		a.thread.SetRoom("")
	}
	a.pages.Pop()
	a.focusCurrent()
}

func (a *App) toggleThreadFocus() {
	if a.app.GetFocus() == a.thread.Composer() {
		a.app.SetFocus(a.thread.Messages())
		return
	}
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	if mode == ui.PromptSearch {
		a.prompt.SetText(a.query)
	}
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageLogin:
		a.app.SetFocus(a.login)
	case pageRooms:
		a.app.SetFocus(a.rooms)
	case pageRoom:
		a.app.SetFocus(a.thread.Composer())
	case pageInfo:
		a.app.SetFocus(a.roomInfo)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
}

func (a *App) renderRooms() {
	all := a.client.Summaries("")
	shown := conversation.FilterSummaries(all, a.query)
	a.rooms.Update(shown, a.query, len(all), a.now())
}

func (a *App) renderThread() {
	room := a.thread.Room()
	if room == "" {
		return
	}
	me, _ := a.client.Me()
	a.thread.Update(a.client.Log(room), me)
}

func (a *App) renderHeader() {
	me, _ := a.client.Me()
	all := a.client.Summaries("")
	unread := 0
	for _, s := range all {
		unread += s.UnreadCount
	}
	data := &ui.ProfileData{
		Profile:  a.client.Profile(),
		Nickname: me,
		Status:   string(a.client.Status()),
		Rooms:    len(all),
		Unread:   unread,
	}
	if v, ok := a.client.LastRefresh(""); ok {
		data.Synced = formatCheckpoint(v)
	}
	a.profile.Update(data)
}

func formatCheckpoint(v string) string {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return v
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
