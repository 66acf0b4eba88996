package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/cwygoda/reel/internal/adapter/api"
	"github.com/cwygoda/reel/internal/adapter/download"
	"github.com/cwygoda/reel/internal/adapter/sqlite"
	"github.com/cwygoda/reel/internal/assets"
	"github.com/cwygoda/reel/internal/config"
	"github.com/cwygoda/reel/internal/domain"
	"github.com/cwygoda/reel/internal/poller"
)

// app carries the configuration and adapters shared by the commands.
type app struct {
	cfg  *config.Config
	repo *sqlite.Repository
}

// envToken serves REEL_TOKEN in place of the saved session.
type envToken string

func (t envToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// setup loads configuration and parses the flags of one command. bind
// registers the command's own flags. Flags and positional arguments may be
// mixed.
func setup(name string, args []string, bind func(fs *flag.FlagSet)) (*app, []string, error) {
	cfg, err := config.Load(configPathFromArgs(args))
	if err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	fs.String("config", "", "config file path")
	cfg.BindFlags(fs)
	if bind != nil {
		bind(fs)
	}
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &app{cfg: cfg}, rest, nil
}

func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// configPathFromArgs finds --config before the flag set exists, since the
// file provides the flag defaults.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (a *app) close() {
	if a.repo != nil {
		a.repo.Close()
	}
}

func (a *app) openRepo() (*sqlite.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	repo, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.DBPath, err)
	}
	a.repo = repo
	return repo, nil
}

func (a *app) credentials() (domain.Credentials, error) {
	if a.cfg.Token != "" {
		return envToken(a.cfg.Token), nil
	}
	return a.openRepo()
}

func (a *app) client() (*api.Client, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	return api.New(a.cfg.APIURL, creds), nil
}

// newStore returns a store whose changes are mirrored into the history
// cache.
func (a *app) newStore() (*domain.Store, error) {
	repo, err := a.openRepo()
	if err != nil {
		return nil, err
	}
	return domain.NewStore(domain.WithObserver(func(job domain.Job) {
		if err := repo.SaveJob(context.Background(), job); err != nil {
			log.Printf("job %s: cache: %v", job.ID, err)
		}
	})), nil
}

func (a *app) newPoller(source domain.StatusSource, store *domain.Store, onEvent func(poller.Event)) *poller.Poller {
	opts := []poller.Option{
		poller.WithInterval(a.cfg.PollInterval),
		poller.WithRequestTimeout(a.cfg.RequestTimeout),
	}
	if onEvent != nil {
		opts = append(opts, poller.WithEventHandler(onEvent))
	}
	return poller.New(source, store, opts...)
}

func (a *app) newGateway(store *domain.Store, client *api.Client, dir string) (*assets.Gateway, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = a.cfg.DownloadDir
	}
	registry := download.NewRegistry()
	registry.Register(download.NewBackendFetcher(a.cfg.APIURL, creds))
	registry.Register(download.NewPublicFetcher())
	return assets.NewGateway(store, client, download.NewDownloader(registry, config.ExpandPath(dir))), nil
}

// describeError adds hints for errors the user can act on.
func describeError(err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		return fmt.Errorf("%w: session expired or invalid, run `reel login`", err)
	}
	return err
}

func requireOneArg(rest []string, what string) (string, error) {
	if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
		return "", fmt.Errorf("expected exactly one %s argument", what)
	}
	return strings.TrimSpace(rest[0]), nil
}
