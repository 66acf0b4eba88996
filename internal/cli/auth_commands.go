package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cwygoda/reel/internal/adapter/api"
	"github.com/cwygoda/reel/internal/adapter/sqlite"
	"github.com/cwygoda/reel/internal/domain"
)

type credentialFlags struct {
	name     *string
	email    *string
	password *string
}

func bindCredentialFlags(fs *flag.FlagSet, withName bool) *credentialFlags {
	f := &credentialFlags{
		email:    fs.String("email", "", "account email"),
		password: fs.String("password", "", "account password (or REEL_PASSWORD)"),
	}
	if withName {
		f.name = fs.String("name", "", "display name")
	}
	return f
}

func (f *credentialFlags) resolve() (email, password string, err error) {
	email = strings.TrimSpace(*f.email)
	if email == "" {
		if email, err = promptRequired("Email"); err != nil {
			return "", "", err
		}
	}
	password = *f.password
	if password == "" {
		password = os.Getenv("REEL_PASSWORD")
	}
	if password == "" {
		if password, err = promptPassword(); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

func runRegister(args []string) error {
	var creds *credentialFlags
	var jsonOut *bool
	a, _, err := setup("register", args, func(fs *flag.FlagSet) {
		creds = bindCredentialFlags(fs, true)
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	email, password, err := creds.resolve()
	if err != nil {
		return err
	}
	sess, err := api.New(a.cfg.APIURL, nil).Register(context.Background(), strings.TrimSpace(*creds.name), email, password)
	if err != nil {
		return err
	}
	if err := a.saveSession(sess); err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(sess.User)
	}
	fmt.Fprintf(stdout, "registered and logged in as %s\n", sess.User.Email)
	return nil
}

func runLogin(args []string) error {
	var creds *credentialFlags
	var jsonOut *bool
	a, _, err := setup("login", args, func(fs *flag.FlagSet) {
		creds = bindCredentialFlags(fs, false)
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	email, password, err := creds.resolve()
	if err != nil {
		return err
	}
	sess, err := api.New(a.cfg.APIURL, nil).Login(context.Background(), email, password)
	if err != nil {
		var be *domain.BackendError
		if errors.As(err, &be) && be.Message != "" {
			return errors.New(be.Message)
		}
		return err
	}
	if err := a.saveSession(sess); err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(sess.User)
	}
	fmt.Fprintf(stdout, "logged in as %s\n", sess.User.Email)
	return nil
}

func (a *app) saveSession(sess *api.Session) error {
	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	return repo.SaveSession(context.Background(), sqlite.Session{
		Token:            sess.Token,
		UserID:           sess.User.ID,
		Email:            sess.User.Email,
		Name:             sess.User.Name,
		SubscriptionTier: sess.User.SubscriptionTier,
	})
}

func runLogout(args []string) error {
	a, _, err := setup("logout", args, nil)
	if err != nil {
		return err
	}
	defer a.close()

	repo, err := a.openRepo()
	if err != nil {
		return err
	}
	if err := repo.ClearSession(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "logged out")
	return nil
}

func runWhoami(args []string) error {
	var jsonOut *bool
	a, _, err := setup("whoami", args, func(fs *flag.FlagSet) {
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	client, err := a.client()
	if err != nil {
		return err
	}
	user, err := client.Me(context.Background())
	if err != nil {
		return describeError(err)
	}
	if *jsonOut {
		return printJSON(user)
	}
	printUser(user)
	return nil
}

func runProfile(args []string) error {
	var name *string
	var jsonOut *bool
	a, _, err := setup("profile", args, func(fs *flag.FlagSet) {
		name = fs.String("name", "", "new display name")
		jsonOut = fs.Bool("json", false, "output JSON")
	})
	if err != nil {
		return err
	}
	defer a.close()

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	user, err := client.UpdateMe(context.Background(), strings.TrimSpace(*name))
	if err != nil {
		return describeError(err)
	}
	if a.cfg.Token == "" {
		if repo, err := a.openRepo(); err == nil {
			if sess, err := repo.Session(context.Background()); err == nil {
				sess.Name = user.Name
				repo.SaveSession(context.Background(), *sess)
			}
		}
	}
	if *jsonOut {
		return printJSON(user)
	}
	printUser(user)
	return nil
}

func printUser(u *api.User) {
	fmt.Fprintf(stdout, "name:  %s\n", u.Name)
	fmt.Fprintf(stdout, "email: %s\n", u.Email)
	if u.SubscriptionTier != "" {
		fmt.Fprintf(stdout, "plan:  %s\n", u.SubscriptionTier)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(stdout, "since: %s\n", u.CreatedAt.Format("2006-01-02"))
	}
}
