package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwygoda/reel/internal/adapter/api"
	"github.com/cwygoda/reel/internal/adapter/download"
	"github.com/cwygoda/reel/internal/assets"
	"github.com/cwygoda/reel/internal/domain"
	"github.com/cwygoda/reel/internal/poller"
	"github.com/cwygoda/reel/internal/view"
)

// jobOutput is the machine-readable form of a job.
type jobOutput struct {
	ID           string    `json:"id" yaml:"id"`
	Prompt       string    `json:"prompt" yaml:"prompt"`
	Status       string    `json:"status" yaml:"status"`
	Label        string    `json:"label" yaml:"label"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	VideoURL     string    `json:"video_url,omitempty" yaml:"video_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty"`
}

func toOutput(j domain.Job) jobOutput {
	return jobOutput{
		ID:           j.ID,
		Prompt:       j.Prompt,
		Status:       string(j.Status),
		Label:        view.StatusLabel(j),
		CreatedAt:    j.CreatedAt,
		VideoURL:     j.VideoAsset,
		ThumbnailURL: j.ThumbnailAsset,
	}
}

func runGenerate(args []string) error {
	var wait, jsonOut *bool
	a, rest, err := setup("generate", args, func(fs *flag.FlagSet) {
		wait = fs.Bool("wait", false, "poll until the video is finished")
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	prompt := strings.TrimSpace(strings.Join(rest, " "))
	if prompt == "" {
		if prompt, err = promptRequired("Prompt"); err != nil {
			return domain.ErrEmptyPrompt
		}
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	if !*wait {
		job, err := domain.NewSubmitter(client, store, nil).Submit(ctx, prompt)
		if err != nil {
			return describeError(err)
		}
		return printJob(job, *jsonOut)
	}

	w := newWaiter(ctx)
	p := a.newPoller(client, store, w.handle)
	defer p.StopAll()

	job, err := domain.NewSubmitter(client, store, p).Submit(ctx, prompt)
	if err != nil {
		return describeError(err)
	}
	if !*jsonOut {
		fmt.Fprintf(stdout, "submitted %s: %s\n", job.ID, view.StatusLabel(job))
	}
	if job.Status.IsTerminal() {
		return finish(job, *jsonOut)
	}
	final, err := w.wait(job.ID, !*jsonOut)
	if err != nil {
		return err
	}
	return finish(final, *jsonOut)
}

func runList(args []string) error {
	var page, perPage *int
	var format *string
	var jsonOut, offline *bool
	a, _, err := setup("list", args, func(fs *flag.FlagSet) {
		page = fs.Int("page", 1, "page number")
		perPage = fs.Int("per-page", 0, "videos per page (default from config)")
		format = fs.String("format", "table", "output format: table, json or yaml")
		jsonOut = fs.Bool("json", false, "shorthand for --format json")
		offline = fs.Bool("offline", false, "read the local history cache instead of the backend")
	})
	if err != nil {
		return err
	}
	defer a.close()

	if *page < 1 {
		return errors.New("--page must be at least 1")
	}
	size := *perPage
	if size <= 0 {
		size = a.cfg.PageSize
	}
	if *jsonOut {
		*format = "json"
	}

	var jobs []domain.Job
	if *offline {
		repo, err := a.openRepo()
		if err != nil {
			return err
		}
		if jobs, err = repo.ListJobs(context.Background(), (*page-1)*size, size); err != nil {
			return err
		}
	} else {
		client, err := a.client()
		if err != nil {
			return err
		}
		store, err := a.newStore()
		if err != nil {
			return err
		}
		if _, err := domain.NewLibrary(client, store, nil).Refresh(context.Background(), *page, size); err != nil {
			return describeError(err)
		}
		jobs = store.List()
	}
	return printJobs(jobs, *format)
}

func runStatus(args []string) error {
	var watch, jsonOut *bool
	a, rest, err := setup("status", args, func(fs *flag.FlagSet) {
		watch = fs.Bool("watch", false, "poll until the video is finished")
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	id, err := requireOneArg(rest, "video id")
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	job, err := fetchInto(ctx, client, store, id)
	if err != nil {
		return err
	}
	if !*watch || job.Status.IsTerminal() {
		return printJob(job, *jsonOut)
	}

	w := newWaiter(ctx)
	p := a.newPoller(client, store, w.handle)
	defer p.StopAll()
	if !*jsonOut {
		fmt.Fprintf(stdout, "%s: %s\n", job.ID, view.StatusLabel(job))
	}
	if err := p.Start(id); err != nil {
		return err
	}
	final, err := w.wait(id, !*jsonOut)
	if err != nil {
		return err
	}
	return finish(final, *jsonOut)
}

func runCode(args []string) error {
	var copyOut *bool
	a, rest, err := setup("code", args, func(fs *flag.FlagSet) {
		copyOut = fs.Bool("copy", false, "copy the code to the clipboard")
	})
	if err != nil {
		return err
	}
	defer a.close()

	id, err := requireOneArg(rest, "video id")
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := fetchInto(ctx, client, store, id); err != nil {
		return err
	}
	gw := assets.NewGateway(store, client, nil)

	if *copyOut {
		if _, err := gw.CopyCode(ctx, id); err != nil {
			return describeError(err)
		}
		fmt.Fprintln(stdout, "code copied to clipboard")
		return nil
	}
	code, err := gw.FetchCode(ctx, id)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintln(stdout, strings.TrimRight(code, "\n"))
	return nil
}

func runDownload(args []string) error {
	var out *string
	var open *bool
	a, rest, err := setup("download", args, func(fs *flag.FlagSet) {
		out = fs.String("out", "", "directory to save into (default download_dir)")
		open = fs.Bool("open", false, "open the video with the configured player")
	})
	if err != nil {
		return err
	}
	defer a.close()

	id, err := requireOneArg(rest, "video id")
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	if _, err := fetchInto(ctx, client, store, id); err != nil {
		return err
	}
	gw, err := a.newGateway(store, client, *out)
	if err != nil {
		return err
	}
	path, err := gw.Download(ctx, id)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintln(stdout, path)

	if *open {
		return download.NewLauncher(a.cfg.Player).Open(ctx, path)
	}
	return nil
}

// fetchInto loads the backend record for id into store.
func fetchInto(ctx context.Context, client *api.Client, store *domain.Store, id string) (domain.Job, error) {
	job, err := client.GetVideo(ctx, id)
	if err != nil {
		return domain.Job{}, describeError(err)
	}
	if err := store.Insert(*job); err != nil {
		return domain.Job{}, err
	}
	return *job, nil
}

func printJob(job domain.Job, jsonOut bool) error {
	if jsonOut {
		return printJSON(toOutput(job))
	}
	fmt.Fprintf(stdout, "id:      %s\n", job.ID)
	fmt.Fprintf(stdout, "status:  %s\n", view.StatusLabel(job))
	fmt.Fprintf(stdout, "prompt:  %s\n", job.Prompt)
	if view.CanDownload(job) && job.VideoAsset != "" {
		fmt.Fprintf(stdout, "video:   %s\n", job.VideoAsset)
	}
	return nil
}

func finish(job domain.Job, jsonOut bool) error {
	if err := printJob(job, jsonOut); err != nil {
		return err
	}
	if job.Status == domain.StatusFailed {
		return fmt.Errorf("video %s failed to render", job.ID)
	}
	return nil
}

func printJobs(jobs []domain.Job, format string) error {
	switch format {
	case "json":
		out := make([]jobOutput, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, toOutput(j))
		}
		return printJSON(out)
	case "yaml":
		out := make([]jobOutput, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, toOutput(j))
		}
		return printYAML(out)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(stdout, "no videos yet")
		return nil
	}
	vm := view.Project(jobs, "", time.Now())
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tPROMPT")
	for _, row := range vm.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ID, row.Label, row.Created, truncate(row.Prompt, 60))
	}
	return tw.Flush()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// waiter turns poller events into a blocking wait for one job.
type waiter struct {
	ctx    context.Context
	events chan poller.Event
}

func newWaiter(ctx context.Context) *waiter {
	return &waiter{ctx: ctx, events: make(chan poller.Event, 16)}
}

func (w *waiter) handle(ev poller.Event) {
	select {
	case w.events <- ev:
	case <-w.ctx.Done():
	}
}

func (w *waiter) wait(id string, progress bool) (domain.Job, error) {
	for {
		select {
		case <-w.ctx.Done():
			return domain.Job{}, fmt.Errorf("stopped waiting for %s: %w", id, w.ctx.Err())
		case ev := <-w.events:
			if ev.JobID != id {
				continue
			}
			switch ev.Kind {
			case poller.EventUpdated:
				if progress {
					fmt.Fprintf(stdout, "%s: %s\n", id, view.StatusLabel(ev.Job))
				}
			case poller.EventFinished:
				return ev.Job, nil
			case poller.EventFailed:
				return domain.Job{}, fmt.Errorf("%s stopped without reaching completion: %w", id, describeError(ev.Err))
			}
		}
	}
}
