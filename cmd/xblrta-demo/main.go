// Command xblrta-demo signs in interactively via the MSA device-code flow
// and then opens an RTA session on the session-directory resource,
// printing every event it receives. It exists to exercise the library
// end to end; it is not part of the library's public surface.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lucasnewell/xblrta/auth"
	"github.com/lucasnewell/xblrta/internal/config"
	"github.com/lucasnewell/xblrta/internal/transport"
	"github.com/lucasnewell/xblrta/rta"
)

type stage int

const (
	stageAuthenticating stage = iota
	stageWaitingForUser
	stageConnecting
	stageListening
	stageError
)

type model struct {
	stage      stage
	deviceCode *auth.DeviceCodeResponse
	err        error
	events     []string
	spin       spinner.Model

	authHolder *auth.SharedHolder
	eventCh    <-chan rta.Event
	cancel     context.CancelFunc

	deviceCodeCh chan *auth.DeviceCodeResponse
}

type deviceCodeMsg struct{ dc *auth.DeviceCodeResponse }
type signedInMsg struct{}
type connectedMsg struct{ events <-chan rta.Event }
type eventMsg struct{ ev rta.Event }
type channelClosedMsg struct{}
type errMsg struct{ err error }

func main() {
	xblAuth, err := auth.NewXBLAuth(config.DefaultCacheDir(), "demo-user", transport.New())
	if err != nil {
		fmt.Fprintln(os.Stderr, "building auth client:", err)
		os.Exit(1)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &model{
		stage:        stageAuthenticating,
		spin:         s,
		authHolder:   auth.NewSharedHolder(xblAuth),
		deviceCodeCh: make(chan *auth.DeviceCodeResponse, 1),
	}
	xblAuth.OnDeviceCode = func(dc *auth.DeviceCodeResponse) {
		m.deviceCodeCh <- dc
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo exited:", err)
		os.Exit(1)
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.signIn, waitForDeviceCode(m.deviceCodeCh))
}

func waitForDeviceCode(ch <-chan *auth.DeviceCodeResponse) tea.Cmd {
	return func() tea.Msg {
		dc, ok := <-ch
		if !ok {
			return nil
		}
		return deviceCodeMsg{dc: dc}
	}
}

func (m *model) signIn() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if _, err := m.authHolder.GetXboxToken(ctx); err != nil {
		return errMsg{err: err}
	}
	return signedInMsg{}
}

func (m *model) connect() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		client, err := rta.NewBuilder(m.authHolder).
			AddSubscription("https://sessiondirectory.xboxlive.com/connections/").
			Connect(ctx)
		if err != nil {
			cancel()
			return errMsg{err: err}
		}
		_, events := client.Listen(ctx)
		m.cancel = cancel
		return connectedMsg{events: events}
	}
}

func waitForEvent(ch <-chan rta.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" || msg.String() == "esc" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case deviceCodeMsg:
		m.deviceCode = msg.dc
		m.stage = stageWaitingForUser
		return m, nil

	case signedInMsg:
		m.stage = stageConnecting
		return m, m.connect()

	case connectedMsg:
		m.stage = stageListening
		m.eventCh = msg.events
		return m, waitForEvent(m.eventCh)

	case eventMsg:
		m.events = append(m.events, describeEvent(msg.ev))
		if len(m.events) > 20 {
			m.events = m.events[len(m.events)-20:]
		}
		return m, waitForEvent(m.eventCh)

	case channelClosedMsg:
		return m, tea.Quit

	case errMsg:
		m.stage = stageError
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func describeEvent(ev rta.Event) string {
	switch ev.Kind {
	case rta.EventKindSubscribed:
		return fmt.Sprintf("subscribed sub_id=%d connection_id=%s", ev.SubID, ev.ConnectionID)
	case rta.EventKindUnsubscribed:
		return fmt.Sprintf("unsubscribed seq_id=%d", ev.SeqID)
	case rta.EventKindData:
		return fmt.Sprintf("event sub_id=%d data=%v", ev.SubID, ev.Data)
	case rta.EventKindPong:
		return "pong"
	default:
		return "unknown event"
	}
}

func (m *model) View() string {
	doc := lipgloss.NewStyle().Padding(1, 2)
	switch m.stage {
	case stageAuthenticating:
		return doc.Render(fmt.Sprintf("%s Signing in via Microsoft...", m.spin.View()))
	case stageWaitingForUser:
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Render(m.deviceCode.UserCode)
		return doc.Render(fmt.Sprintf("Open %s and enter the code:\n\n%s\n\n%s Waiting for you to sign in...",
			lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Render(m.deviceCode.VerificationURI),
			box, m.spin.View()))
	case stageConnecting:
		return doc.Render(fmt.Sprintf("%s Opening RTA session...", m.spin.View()))
	case stageListening:
		body := "Listening for RTA events. [q] quit\n\n"
		for _, e := range m.events {
			body += e + "\n"
		}
		return doc.Render(body)
	case stageError:
		return doc.Render(fmt.Sprintf("error: %v\n\n[q] quit", m.err))
	default:
		return doc.Render("")
	}
}
