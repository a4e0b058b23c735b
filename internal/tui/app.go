package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Panel int

const (
	ChatPanel Panel = iota
	StatusPanel
)

type completionMsg struct {
	content   string
	model     string
	provider  string
	cached    bool
	sessionID string
}

type completionErrMsg struct{ err error }

type providersMsg struct {
	statuses map[string]string
	chain    []string
}

type providersErrMsg struct{ err error }

type refreshTickMsg struct{}

type App struct {
	width, height int
	currentPanel  Panel
	chat          *Chat
	status        *Status
	input         textinput.Model
	keys          KeyMap
	client        *GatewayClient
	sessionID     string
	waiting       bool
}

func NewApp(gatewayURL string) *App {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.Focus()
	return &App{
		currentPanel: ChatPanel,
		chat:         NewChat(),
		status:       NewStatus(),
		input:        input,
		keys:         DefaultKeyMap,
		client:       NewGatewayClient(gatewayURL),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.fetchProviders(), refreshTick())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Tab):
			a.currentPanel = (a.currentPanel + 1) % 2
		case msg.String() == "enter":
			if v := strings.TrimSpace(a.input.Value()); v != "" && !a.waiting {
				a.chat.AddMessage("user", v)
				a.input.Reset()
				a.waiting = true
				cmds = append(cmds, a.sendCompletion(v))
			}
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case completionMsg:
		a.waiting = false
		a.sessionID = msg.sessionID
		label := msg.model
		if msg.cached {
			label += " (cached)"
		}
		a.chat.AddMessage(label, msg.content)
	case completionErrMsg:
		a.waiting = false
		a.chat.AddMessage("error", msg.err.Error())
	case refreshTickMsg:
		cmds = append(cmds, a.fetchProviders(), refreshTick())
	}

	var cmd tea.Cmd
	// Scroll keys go to the transcript only while its panel has focus.
	if _, isKey := msg.(tea.KeyMsg); !isKey || a.currentPanel == ChatPanel {
		a.chat, cmd = a.chat.Update(msg)
		cmds = append(cmds, cmd)
	}
	a.status, cmd = a.status.Update(msg)
	cmds = append(cmds, cmd)
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	statusBar := a.statusBarView()
	inputBar := InputBarStyle.Render(a.input.View())

	contentHeight := a.height - lipgloss.Height(statusBar) - lipgloss.Height(inputBar)

	leftWidth := int(float64(a.width) * 0.7)
	rightWidth := a.width - leftWidth

	chatView := a.chat.View(leftWidth, contentHeight, a.currentPanel == ChatPanel)
	statusView := a.status.View(rightWidth, contentHeight, a.currentPanel == StatusPanel)

	content := lipgloss.JoinHorizontal(lipgloss.Top, chatView, statusView)
	return lipgloss.JoinVertical(lipgloss.Left, statusBar, content, inputBar)
}

func (a *App) statusBarView() string {
	state := "ready"
	if a.waiting {
		state = "thinking..."
	}
	tab := a.keys.Tab.Help()
	quit := a.keys.Quit.Help()
	bar := fmt.Sprintf("sophia-gateway chat · %s · %s %s · %s %s",
		state, tab.Key, tab.Desc, quit.Key, quit.Desc)
	return StatusBarStyle.Width(a.width).Render(bar)
}

func (a *App) sendCompletion(prompt string) tea.Cmd {
	sessionID := a.sessionID
	return func() tea.Msg {
		resp, err := a.client.Complete("chat", prompt, sessionID)
		if err != nil {
			return completionErrMsg{err: err}
		}
		return completionMsg{
			content:   resp.Content,
			model:     resp.Model,
			provider:  resp.Provider,
			cached:    resp.Cached,
			sessionID: resp.SessionID,
		}
	}
}

func (a *App) fetchProviders() tea.Cmd {
	return func() tea.Msg {
		statuses, chain, err := a.client.Providers()
		if err != nil {
			return providersErrMsg{err: err}
		}
		return providersMsg{statuses: statuses, chain: chain}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(10*time.Second, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// Run starts the TUI event loop
func Run(gatewayURL string) error {
	p := tea.NewProgram(NewApp(gatewayURL), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
