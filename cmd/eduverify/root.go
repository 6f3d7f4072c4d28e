package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eduverify/internal/app"
	"eduverify/internal/certificate/viewstate"
	"eduverify/internal/platform/config"
	"eduverify/internal/platform/logger"
)

// cli carries per-invocation state. NewRootCmd builds a fresh one so tests
// can run commands in isolation.
type cli struct {
	cfgFile string
	verbose bool
	out     io.Writer
	errOut  io.Writer
	v       *viper.Viper
	model   *viewstate.Model
}

// NewRootCmd creates the eduverify command tree.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut, model: viewstate.New()}

	cmd := &cobra.Command{
		Use:   "eduverify",
		Short: "Issue, revoke, verify and list academic certificates.",
		Long: `eduverify drives a certificate registry on behalf of an institution.
Certificates are addressed by student and by their position in the
student's sequence; documents are stored by content hash.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./eduverify.yaml)")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log registry calls to stderr")
	cmd.PersistentFlags().String("registry-url", "", "registry base URL")
	cmd.PersistentFlags().Duration("timeout", 0, "per-call registry timeout")

	cmd.AddCommand(
		c.newListCmd(),
		c.newIssueCmd(),
		c.newRevokeCmd(),
		c.newVerifyCmd(),
		c.newServeCmd(),
	)
	return cmd
}

func (c *cli) loadConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(c.cfgFile)
	if err != nil {
		return err
	}
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "warn")
	if c.verbose {
		v.Set("log.level", "debug")
	}
	if err := v.BindPFlag("registry.base_url", cmd.Flags().Lookup("registry-url")); err != nil {
		return err
	}
	if err := v.BindPFlag("registry.timeout", cmd.Flags().Lookup("timeout")); err != nil {
		return err
	}
	c.v = v
	return nil
}

// withApp builds the service for one command and releases it afterwards.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(c.errOut, cfg.Log.Level, cfg.Log.Format)

	a, err := app.New(ctx, cfg, log, app.WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("failed to release resources", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.withApp(ctx, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return c.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	}
	return cmd
}

// result turns the model's error notification into the command's error so
// the process exits non-zero.
func (c *cli) result() error {
	s := c.model.Snapshot()
	if s.Notification.Open && s.Notification.Severity == viewstate.SeverityError {
		return errors.New(s.Notification.Message)
	}
	return nil
}
