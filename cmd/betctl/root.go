package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ugandavote/betclient"
	"github.com/ugandavote/betclient/internal/logging"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer

	cfg    betclient.Config
	client *betclient.Client
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "betctl",
		Short:         "Command line client for the election betting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .yml or .json)")

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.balanceCmd(),
		a.withdrawCmd(),
		a.withdrawalsCmd(),
		a.referralsCmd(),
		a.betsCmd(),
		a.electionsCmd(),
		a.mpesaCmd(),
		a.adminCmd(),
		a.journalCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// loadConfig resolves defaults, then the --config file, then BETCLIENT_*
// variables. Logs go to stderr so stdout stays parseable.
func (a *app) loadConfig() error {
	cfg := betclient.DefaultConfig()
	if a.configPath != "" {
		loaded, err := betclient.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if err := betclient.ApplyEnv(&cfg); err != nil {
		return err
	}
	logging.SetupWriter(a.errOut, cfg.Log.Level, cfg.Log.Format)
	a.cfg = cfg
	return nil
}

// clientFor opens the client on first use.
func (a *app) clientFor(ctx context.Context) (*betclient.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	c, err := betclient.New(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	c.OnUnauthenticated(func(_ context.Context, _ *betclient.Error) {
		fmt.Fprintln(a.errOut, "Session expired or invalid. Run `betctl login` again.")
	})
	a.client = c
	return c, nil
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// withClient adapts a client-using function to a cobra RunE.
func (a *app) withClient(fn func(ctx context.Context, c *betclient.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := a.clientFor(cmd.Context())
		if err != nil {
			return err
		}
		return explain(fn(cmd.Context(), c, args))
	}
}

// explain turns client errors into the short messages a user acts on.
func explain(err error) error {
	var e *betclient.Error
	if !errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, betclient.ErrUnauthenticated):
		return errors.New("not logged in")
	case errors.Is(err, betclient.ErrValidation) && e.Balance != nil:
		return fmt.Errorf("%s (balance %s)", e.Message, money(*e.Balance))
	case errors.Is(err, betclient.ErrValidation):
		return errors.New(e.Message)
	}
	return err
}
