package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	stub "github.com/cwygoda/reel/internal/adapter/http"
	"github.com/cwygoda/reel/internal/domain"
)

// harness runs commands against an in-memory backend with an isolated
// config, database and working directory.
type harness struct {
	t   *testing.T
	dir string
	out *bytes.Buffer
}

func newHarness(t *testing.T, opts stub.Options) *harness {
	t.Helper()
	srv := httptest.NewServer(stub.NewServer("", opts))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("REEL_API_URL", srv.URL)
	t.Setenv("REEL_DB", filepath.Join(dir, "reel.db"))
	t.Setenv("REEL_DOWNLOAD_DIR", filepath.Join(dir, "videos"))
	t.Setenv("REEL_POLL_INTERVAL", "10ms")
	t.Setenv("REEL_TOKEN", "")
	t.Setenv("REEL_PASSWORD", "")

	out := &bytes.Buffer{}
	prev := stdout
	stdout = out
	t.Cleanup(func() { stdout = prev })

	return &harness{t: t, dir: dir, out: out}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	err := Run(args)
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (h *harness) register() {
	h.t.Helper()
	h.mustRun("register", "--name", "Ada", "--email", "ada@example.com", "--password", "pw")
}

func TestRunUnknownCommand(t *testing.T) {
	if err := Run([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--config", "/a.toml", "list"}, "/a.toml"},
		{[]string{"-config=/b.toml"}, "/b.toml"},
		{[]string{"list", "--json"}, ""},
		{[]string{"config"}, ""},
	}
	for _, tt := range tests {
		if got := configPathFromArgs(tt.args); got != tt.want {
			t.Errorf("configPathFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "")
	out := fs.String("out", "", "")

	rest, err := parseInterspersed(fs, []string{"v1", "--watch", "--out", "dir", "v2"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !*watch || *out != "dir" {
		t.Fatalf("flags not parsed: watch=%v out=%q", *watch, *out)
	}
	if strings.Join(rest, ",") != "v1,v2" {
		t.Fatalf("unexpected positional args %v", rest)
	}
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 2})

	if _, err := h.run("list"); !errors.Is(err, domain.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials before login, got %v", err)
	}

	h.register()
	if out := h.mustRun("whoami"); !strings.Contains(out, "ada@example.com") {
		t.Fatalf("whoami output missing email: %q", out)
	}

	out := h.mustRun("generate", "--wait", "--json", "a blue circle")
	var job jobOutput
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode generate output %q: %v", out, err)
	}
	if job.Status != "completed" || job.Prompt != "a blue circle" {
		t.Fatalf("unexpected job %+v", job)
	}

	if out := h.mustRun("code", job.ID); !strings.Contains(out, "a blue circle") {
		t.Fatalf("code output missing prompt: %q", out)
	}

	out = h.mustRun("download", job.ID, "--out", filepath.Join(h.dir, "out"))
	path := strings.TrimSpace(out)
	if filepath.Base(path) != "manim-animation-"+job.ID+".mp4" {
		t.Fatalf("unexpected download path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}

	out = h.mustRun("list", "--json")
	var listed []jobOutput
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != job.ID {
		t.Fatalf("unexpected list %+v", listed)
	}

	if out := h.mustRun("list", "--offline", "--format", "yaml"); !strings.Contains(out, "id: "+job.ID) {
		t.Fatalf("offline list missing job: %q", out)
	}

	h.mustRun("logout")
	if _, err := h.run("list"); !errors.Is(err, domain.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials after logout, got %v", err)
	}
	if out := h.mustRun("list", "--offline"); !strings.Contains(out, "no videos yet") {
		t.Fatalf("expected empty cache after logout, got %q", out)
	}
}

func TestGenerateWaitFailedRender(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 1})
	h.register()

	_, err := h.run("generate", "--wait", "please fail")

	if err == nil || !strings.Contains(err.Error(), "failed to render") {
		t.Fatalf("expected render failure, got %v", err)
	}
}

func TestGenerateWithoutWait(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 2})
	h.register()

	out := h.mustRun("generate", "--json", "square")

	var job jobOutput
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if job.Status != "processing" {
		t.Fatalf("expected processing status, got %q", job.Status)
	}
}

func TestStatusWatch(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 3})
	h.register()

	out := h.mustRun("generate", "--json", "triangle")
	var job jobOutput
	json.Unmarshal([]byte(out), &job)

	out = h.mustRun("status", job.ID, "--watch")
	if !strings.Contains(out, "Completed") {
		t.Fatalf("expected completed status, got %q", out)
	}
}

func TestCodeNotReady(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 10})
	h.register()

	out := h.mustRun("generate", "--json", "hexagon")
	var job jobOutput
	json.Unmarshal([]byte(out), &job)

	if _, err := h.run("code", job.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestListFormats(t *testing.T) {
	h := newHarness(t, stub.Options{RenderPolls: 2})
	h.register()
	h.mustRun("generate", "first prompt")

	if out := h.mustRun("list"); !strings.Contains(out, "first prompt") || !strings.Contains(out, "STATUS") {
		t.Fatalf("unexpected table output %q", out)
	}
	if _, err := h.run("list", "--format", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t, stub.Options{})
	h.register()

	_, err := h.run("login", "--email", "ada@example.com", "--password", "nope")

	if err == nil || err.Error() != "Invalid credentials" {
		t.Fatalf("expected backend message, got %v", err)
	}
}

func TestProfile(t *testing.T) {
	h := newHarness(t, stub.Options{})
	h.register()

	if out := h.mustRun("profile", "--name", "Grace"); !strings.Contains(out, "Grace") {
		t.Fatalf("unexpected profile output %q", out)
	}
	if _, err := h.run("profile"); err == nil {
		t.Fatal("expected error without --name")
	}
}
