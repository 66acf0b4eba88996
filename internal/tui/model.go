// Package tui is the interactive terminal dashboard: a prompt form, the
// job list and the current job with its actions.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwygoda/reel/internal/assets"
	"github.com/cwygoda/reel/internal/domain"
	"github.com/cwygoda/reel/internal/poller"
	"github.com/cwygoda/reel/internal/view"
)

type mode int

const (
	modeBrowse mode = iota
	modePrompt
	modeCode
)

// Deps are the collaborators of the dashboard. The dashboard owns Poller:
// every poll is stopped when the program exits.
type Deps struct {
	Store     *domain.Store
	Submitter *domain.Submitter
	Library   *domain.Library
	Poller    *poller.Poller
	Gateway   *assets.Gateway
	Events    <-chan poller.Event
	PageSize  int
	// Open is called with the path of a finished download. Optional.
	Open func(ctx context.Context, path string) error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	deps Deps
	now  func() time.Time

	mode    mode
	input   textinput.Model
	spinner spinner.Model
	code    viewport.Model
	codeID  string

	width  int
	height int

	submitting    bool
	statusMessage string
	errorMessage  string
}

type eventMsg poller.Event

type submittedMsg struct {
	job domain.Job
	err error
}

type refreshedMsg struct {
	res domain.RefreshResult
	err error
}

type codeMsg struct {
	id   string
	code string
	err  error
}

type copiedMsg struct {
	err error
}

type downloadedMsg struct {
	path string
	err  error
}

// EventBridge returns a poller event handler and the channel it feeds. Sends
// never block the poll goroutine; events beyond size are dropped and the
// next render reads the store anyway.
func EventBridge(size int) (func(poller.Event), <-chan poller.Event) {
	ch := make(chan poller.Event, size)
	return func(ev poller.Event) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}

// New creates the dashboard model.
func New(deps Deps) Model {
	if deps.PageSize <= 0 {
		deps.PageSize = 10
	}
	in := textinput.New()
	in.Placeholder = "Describe the animation you want to create..."
	in.CharLimit = 1000

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(warningStyle))

	return Model{
		deps:    deps,
		now:     time.Now,
		mode:    modeBrowse,
		input:   in,
		spinner: sp,
		code:    viewport.New(80, 20),
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(deps Deps) error {
	defer deps.Poller.StopAll()
	_, err := tea.NewProgram(New(deps), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.waitForEvent(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.code.Width = maxInt(msg.Width-4, 20)
		m.code.Height = maxInt(msg.Height-6, 5)
		m.input.Width = maxInt(msg.Width-6, 20)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		switch msg.Kind {
		case poller.EventFinished:
			m.statusMessage = fmt.Sprintf("%s: %s", shortID(msg.JobID), view.StatusLabel(msg.Job))
		case poller.EventFailed:
			m.errorMessage = fmt.Sprintf("%s: stopped without reaching completion: %v", shortID(msg.JobID), msg.Err)
		}
		return m, m.waitForEvent()
	case submittedMsg:
		m.submitting = false
		if msg.err != nil {
			m.errorMessage = submitMessage(msg.err)
			return m, nil
		}
		m.errorMessage = ""
		m.statusMessage = "submitted " + shortID(msg.job.ID)
		m.input.Reset()
		m.input.Blur()
		m.mode = modeBrowse
		return m, nil
	case refreshedMsg:
		if msg.err != nil {
			m.errorMessage = "refresh: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = fmt.Sprintf("loaded %d new, %d updated, tracking %d", msg.res.Added, msg.res.Updated, msg.res.Tracking)
		return m, nil
	case codeMsg:
		if msg.err != nil {
			m.errorMessage = "code: " + msg.err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.codeID = msg.id
		m.code.SetContent(msg.code)
		m.code.GotoTop()
		m.mode = modeCode
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.statusMessage = "code copied to clipboard"
		return m, nil
	case downloadedMsg:
		if msg.err != nil {
			m.errorMessage = "download: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = "saved " + msg.path
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case modePrompt:
		return m.updatePrompt(keyMsg)
	case modeCode:
		return m.updateCode(keyMsg)
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.deps.Poller.StopAll()
		return m, tea.Quit
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "n", "/":
		m.mode = modePrompt
		m.errorMessage = ""
		return m, m.input.Focus()
	case "r":
		return m, m.refreshCmd()
	case "c", "enter":
		if cur, ok := m.deps.Store.Current(); ok {
			if !view.CanViewCode(cur) {
				m.errorMessage = "code is available once the video is completed"
				return m, nil
			}
			return m, m.fetchCodeCmd(cur.ID)
		}
	case "y":
		if cur, ok := m.deps.Store.Current(); ok {
			return m, m.copyCodeCmd(cur.ID)
		}
	case "d":
		if cur, ok := m.deps.Store.Current(); ok {
			if !view.CanDownload(cur) {
				m.errorMessage = "download is available once the video is completed"
				return m, nil
			}
			return m, m.downloadCmd(cur.ID)
		}
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.deps.Poller.StopAll()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.submitting {
			return m, nil
		}
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" {
			m.errorMessage = domain.ErrEmptyPrompt.Error()
			return m, nil
		}
		m.submitting = true
		m.errorMessage = ""
		return m, m.submitCmd(prompt)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateCode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.deps.Poller.StopAll()
		return m, tea.Quit
	case "esc", "q":
		m.mode = modeBrowse
		return m, nil
	case "y":
		return m, m.copyCodeCmd(m.codeID)
	}
	var cmd tea.Cmd
	m.code, cmd = m.code.Update(msg)
	return m, cmd
}

// moveSelection selects the neighbour of the current job. The selection
// lives in the store so that new submissions take it over.
func (m *Model) moveSelection(delta int) {
	jobs := m.deps.Store.List()
	if len(jobs) == 0 {
		return
	}
	idx := 0
	if cur, ok := m.deps.Store.Current(); ok {
		for i, j := range jobs {
			if j.ID == cur.ID {
				idx = i + delta
				break
			}
		}
	}
	idx = clampInt(idx, 0, len(jobs)-1)
	m.deps.Store.Select(jobs[idx].ID)
}

func (m Model) waitForEvent() tea.Cmd {
	if m.deps.Events == nil {
		return nil
	}
	ch := m.deps.Events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) submitCmd(prompt string) tea.Cmd {
	sub := m.deps.Submitter
	return func() tea.Msg {
		job, err := sub.Submit(context.Background(), prompt)
		return submittedMsg{job: job, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	lib, size := m.deps.Library, m.deps.PageSize
	if lib == nil {
		return nil
	}
	return func() tea.Msg {
		res, err := lib.Refresh(context.Background(), 1, size)
		return refreshedMsg{res: res, err: err}
	}
}

func (m Model) fetchCodeCmd(id string) tea.Cmd {
	g := m.deps.Gateway
	return func() tea.Msg {
		code, err := g.FetchCode(context.Background(), id)
		return codeMsg{id: id, code: code, err: err}
	}
}

func (m Model) copyCodeCmd(id string) tea.Cmd {
	g := m.deps.Gateway
	return func() tea.Msg {
		_, err := g.CopyCode(context.Background(), id)
		return copiedMsg{err: err}
	}
}

func (m Model) downloadCmd(id string) tea.Cmd {
	g, open := m.deps.Gateway, m.deps.Open
	return func() tea.Msg {
		ctx := context.Background()
		path, err := g.Download(ctx, id)
		if err == nil && open != nil {
			err = open(ctx, path)
		}
		return downloadedMsg{path: path, err: err}
	}
}

func submitMessage(err error) string {
	var se *domain.SubmissionError
	switch {
	case errors.As(err, &se):
		return se.Message
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNoCredentials):
		return "not logged in, run `reel login` and restart the dashboard"
	}
	return err.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
