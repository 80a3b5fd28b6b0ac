package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/coozie/coozie/internal/codeentry"
	"github.com/coozie/coozie/internal/config"
	"github.com/coozie/coozie/internal/logging"
)

const tipFormat = "Check your spam folder if you don't see the email. The code expires in %d minutes."

// Session verifies and resends codes for the address on screen.
type Session interface {
	codeentry.Verifier
	codeentry.Resender
}

// Options wires the screen. Clock and Clipboard default to the real ones.
type Options struct {
	Email     string
	Session   Session
	Clock     codeentry.Clock
	Clipboard func() (string, error)
	Log       *zap.Logger
}

// App is the verification screen.
type App struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     config.Config
	email   string
	ctrl    *codeentry.Controller
	focus   *cellFocus
	changes chan struct{}
	log     *zap.Logger

	keys      keyMap
	help      help.Model
	spinner   spinner.Model
	clipboard func() (string, error)

	status   string
	verified bool
}

type changedMsg struct{}

type redirectMsg struct{}

type pasteMsg string

type errMsg struct{ error }

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	length := cfg.Code.Length
	if length < 1 {
		length = codeentry.DefaultLength
	}
	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		email:     opts.Email,
		focus:     newCellFocus(length),
		changes:   make(chan struct{}, 1),
		log:       log.Named("tui"),
		keys:      defaultKeys(),
		help:      help.New(),
		clipboard: opts.Clipboard,
	}
	if a.clipboard == nil {
		a.clipboard = clipboard.ReadAll
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	a.spinner = sp

	ctrl, err := codeentry.New(codeentry.Options{
		Length:       length,
		Debounce:     cfg.Code.Debounce,
		Cooldown:     cfg.Code.ResendCooldown,
		NoticeWindow: cfg.Code.NoticeWindow,
		Clock:        opts.Clock,
		Focus:        a.focus,
		Verifier:     opts.Session,
		Resender:     opts.Session,
		OnChange:     a.notify,
		Log:          log,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	a.ctrl = ctrl
	return a, nil
}

// Verified reports whether the code was accepted.
func (a *App) Verified() bool { return a.verified }

// Close releases the controller's timers and in-flight calls.
func (a *App) Close() {
	a.ctrl.Close()
	a.cancel()
}

func (a *App) notify() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changes:
			return changedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) Init() tea.Cmd {
	a.ctrl.Start()
	return tea.Batch(a.waitForChange(), a.spinner.Tick)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)
	case changedMsg:
		cmds := []tea.Cmd{a.waitForChange()}
		if !a.verified && a.ctrl.Snapshot().State == codeentry.Succeeded {
			a.verified = true
			a.log.Info("verified, redirecting", zap.Duration("after", a.cfg.UI.RedirectDelay))
			cmds = append(cmds, tea.Tick(a.cfg.UI.RedirectDelay, func(time.Time) tea.Msg { return redirectMsg{} }))
		}
		return a, tea.Batch(cmds...)
	case redirectMsg:
		a.Close()
		return a, tea.Quit
	case pasteMsg:
		a.ctrl.OnCellPaste(a.focus.Current(), string(m))
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := a.focus.Current()
	if m.Paste {
		a.ctrl.OnCellPaste(cur, string(m.Runes))
		return a, nil
	}
	switch {
	case key.Matches(m, a.keys.Quit):
		a.Close()
		return a, tea.Quit
	case key.Matches(m, a.keys.Paste):
		return a, a.readClipboard()
	case key.Matches(m, a.keys.Left):
		a.ctrl.MoveFocus(-1)
	case key.Matches(m, a.keys.Right):
		a.ctrl.MoveFocus(1)
	case key.Matches(m, a.keys.Backspace):
		a.ctrl.OnCellBackspace(cur)
	case key.Matches(m, a.keys.Submit):
		a.ctrl.OnSubmit()
	case key.Matches(m, a.keys.Resend):
		a.ctrl.OnResendClicked()
	case m.Type == tea.KeyRunes && len(m.Runes) > 1:
		a.ctrl.OnCellPaste(cur, string(m.Runes))
	case m.Type == tea.KeyRunes:
		a.ctrl.OnCellInput(cur, string(m.Runes))
	}
	return a, nil
}

func (a *App) readClipboard() tea.Cmd {
	read := a.clipboard
	return func() tea.Msg {
		text, err := read()
		if err != nil {
			return errMsg{fmt.Errorf("clipboard: %w", err)}
		}
		return pasteMsg(text)
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	cellStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(3).
			Align(lipgloss.Center)
	focusedCellStyle = cellStyle.BorderForeground(lipgloss.Color("#7C3AED"))
)

func (a *App) View() string {
	snap := a.ctrl.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("COOZIE") + "  " + progressDots(2, 4) + "\n\n")
	b.WriteString(headingStyle.Render("Check Your Email") + "\n")
	b.WriteString(mutedStyle.Render("We've sent a verification code to "+a.email) + "\n\n")
	b.WriteString(a.renderCells(snap) + "\n\n")

	switch {
	case snap.State == codeentry.Submitting:
		b.WriteString(a.spinner.View() + " Verifying...\n")
	case snap.Error != "":
		b.WriteString(errorStyle.Render(snap.Error) + "\n")
	default:
		b.WriteString("\n")
	}
	if snap.Notice != "" {
		b.WriteString(noticeStyle.Render(snap.Notice) + "\n")
	} else {
		b.WriteString("\n")
	}

	if snap.State != codeentry.Succeeded {
		if snap.CanResend {
			b.WriteString("Didn't receive the code? " + accentStyle.Render("[r] Resend code") + "\n")
		} else {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("Resend code in %ds", snap.Remaining)) + "\n")
		}
	}
	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf(tipFormat, int(a.cfg.Code.TTL/time.Minute))) + "\n")
	if a.status != "" {
		b.WriteString(errorStyle.Render(a.status) + "\n")
	}
	b.WriteString("\n" + a.help.View(a.keys))
	return b.String()
}

func (a *App) renderCells(snap codeentry.Snapshot) string {
	cur := a.focus.Current()
	cells := make([]string, len(snap.Cells))
	for i, v := range snap.Cells {
		if v == "" {
			v = " "
		}
		style := cellStyle
		if i == cur && snap.State != codeentry.Succeeded {
			style = focusedCellStyle
		}
		cells[i] = style.Render(v)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func progressDots(active, total int) string {
	dots := make([]string, total)
	for i := range dots {
		if i < active {
			dots[i] = accentStyle.Render("●")
		} else {
			dots[i] = mutedStyle.Render("○")
		}
	}
	return strings.Join(dots, " ")
}
