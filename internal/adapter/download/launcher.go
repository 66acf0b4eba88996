package download

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/cwygoda/reel/internal/config"
)

// Launcher opens a downloaded file with an external command.
type Launcher struct {
	command string
	args    []string
}

// NewLauncher creates a launcher from config. Without a configured command
// the platform's default opener is used.
func NewLauncher(pc config.PlayerConfig) *Launcher {
	if pc.Command == "" {
		command, args := defaultOpener()
		return &Launcher{command: command, args: args}
	}
	return &Launcher{command: pc.Command, args: pc.Args}
}

func defaultOpener() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{"{path}"}
	case "windows":
		return "cmd", []string{"/c", "start", "", "{path}"}
	}
	return "xdg-open", []string{"{path}"}
}

// Open runs the command for path. Args without a {path} placeholder get
// the path appended.
func (l *Launcher) Open(ctx context.Context, path string) error {
	// Build args with {path} placeholder replaced
	args := make([]string, 0, len(l.args)+1)
	placed := false
	for _, arg := range l.args {
		if strings.Contains(arg, "{path}") {
			placed = true
		}
		args = append(args, strings.ReplaceAll(arg, "{path}", path))
	}
	if !placed {
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, l.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", l.command, err, string(output))
	}
	return nil
}
