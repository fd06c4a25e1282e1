package views

import (
	"fmt"

	"github.com/ekdusrla/ssukssuk-closet/internal/auth"
	"github.com/ekdusrla/ssukssuk-closet/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// LoginView is the sign-in form shown while signed out.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	busy     bool
	onSubmit func(nickname, password string)
}

// NewLoginView creates the sign-in form.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm().
		AddInputField("Nickname", "", 24, nil, nil).
		AddPasswordField("Password", "", 24, '*', nil)
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	box := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 9, 0, true).
		AddItem(message, 2, 0, false)

	flex := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(box, 11, 0, true).
			AddItem(nil, 0, 1, false), 44, 0, true).
		AddItem(nil, 0, 1, false)

	lv := &LoginView{
		Flex:    flex,
		theme:   theme,
		form:    form,
		message: message,
	}
	form.AddButton("Sign in", lv.submit)
	return lv
}

func (lv *LoginView) Name() string { return "sign in" }

// SetOnSubmit sets the callback run with validated credentials.
func (lv *LoginView) SetOnSubmit(fn func(nickname, password string)) {
	lv.onSubmit = fn
}

// SetBusy disables submitting while a sign in is in flight.
func (lv *LoginView) SetBusy(busy bool) {
	lv.busy = busy
	if busy {
		lv.showMessage(lv.theme.FlashInfoColor, "signing in…")
	}
}

// ShowError prints err under the form and clears the password.
func (lv *LoginView) ShowError(err error) {
	lv.busy = false
	lv.password().SetText("")
	lv.showMessage(lv.theme.FlashErrColor, err.Error())
}

// Reset clears both fields and any message.
func (lv *LoginView) Reset() {
	lv.busy = false
	lv.nickname().SetText("")
	lv.password().SetText("")
	lv.message.Clear()
	lv.form.SetFocus(0)
}

func (lv *LoginView) submit() {
	if lv.busy {
		return
	}
	nickname, password := lv.nickname().GetText(), lv.password().GetText()
	if err := auth.ValidateCredentials(nickname, password); err != nil {
		lv.ShowError(err)
		return
	}
	lv.message.Clear()
	if lv.onSubmit != nil {
		lv.onSubmit(nickname, password)
	}
}

func (lv *LoginView) nickname() *tview.InputField {
	return lv.form.GetFormItem(0).(*tview.InputField)
}

func (lv *LoginView) password() *tview.InputField {
	return lv.form.GetFormItem(1).(*tview.InputField)
}

func (lv *LoginView) showMessage(color tcell.Color, text string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.Tag(color), tview.Escape(text))
}
