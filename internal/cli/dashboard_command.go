package cli

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwygoda/reel/internal/adapter/download"
	"github.com/cwygoda/reel/internal/domain"
	"github.com/cwygoda/reel/internal/tui"
)

func runDashboard(args []string) error {
	var logPath, out *string
	var open *bool
	a, _, err := setup("dashboard", args, func(fs *flag.FlagSet) {
		logPath = fs.String("log", "", "log file (default next to the database)")
		out = fs.String("out", "", "directory to save downloads into (default download_dir)")
		open = fs.Bool("open", false, "open downloads with the configured player")
	})
	if err != nil {
		return err
	}
	defer a.close()

	if !stdinIsTTY() {
		return errors.New("dashboard requires an interactive terminal (TTY)")
	}

	// The screen belongs to bubbletea; logs go to a file.
	path := strings.TrimSpace(*logPath)
	if path == "" {
		path = filepath.Join(filepath.Dir(a.cfg.DBPath), "dashboard.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	logFile, err := tea.LogToFile(path, "reel")
	if err != nil {
		return err
	}
	defer logFile.Close()

	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}
	send, events := tui.EventBridge(64)
	p := a.newPoller(client, store, send)
	gw, err := a.newGateway(store, client, *out)
	if err != nil {
		return err
	}

	deps := tui.Deps{
		Store:     store,
		Submitter: domain.NewSubmitter(client, store, p),
		Library:   domain.NewLibrary(client, store, p),
		Poller:    p,
		Gateway:   gw,
		Events:    events,
		PageSize:  a.cfg.PageSize,
	}
	if *open {
		deps.Open = download.NewLauncher(a.cfg.Player).Open
	}
	err = tui.Run(deps)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "tty") {
		return errors.New("dashboard requires an interactive terminal (TTY)")
	}
	return err
}
