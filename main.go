package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matt0x6f/ircsession/internal/app"
	"github.com/matt0x6f/ircsession/internal/config"
	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/metrics"
	"github.com/matt0x6f/ircsession/internal/notify"
	"github.com/matt0x6f/ircsession/internal/security"
	"github.com/matt0x6f/ircsession/internal/storage"
)

type options struct {
	configPath string
	logLevel   string
	server     string
	port       int
	nick       string
	password   string
	tls        bool
	noAuto     bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "ircsession",
		Short:        "Multi-server IRC client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.server, "server", "", "connect to this server on startup")
	cmd.Flags().IntVar(&opts.port, "port", 6667, "server port")
	cmd.Flags().StringVar(&opts.nick, "nick", "", "nickname")
	cmd.Flags().StringVar(&opts.password, "password", "", "server password")
	cmd.Flags().BoolVar(&opts.tls, "tls", false, "connect with TLS")
	cmd.Flags().BoolVar(&opts.noAuto, "no-auto-connect", false, "do not reconnect saved servers on startup")

	cmd.AddCommand(newServersCmd(opts))
	return cmd
}

func newServersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List saved servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.ListServers()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDRESS\tNICK\tTLS")
			for _, rec := range list {
				fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\t%t\n", rec.ID, rec.Name, rec.Host, rec.Port, rec.Nickname, rec.TLS)
			}
			return w.Flush()
		},
	}
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, path, err := config.Load(&logger.Log, opts.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(config.Config{LogLevel: opts.logLevel})
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.Log.Debug().Str("path", path).Msg("Loaded config")
	return cfg, nil
}

func openStorage(cfg config.Config) (*storage.Storage, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return storage.NewStorage(cfg.DatabasePath, security.NewKeychain())
}

func run(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	saver := storage.NewSaver(store)
	defer saver.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notifications {
		notifier = notify.NewDesktop()
	}

	engine := app.New(app.Options{
		Saver:            saver,
		Notifier:         notifier,
		RealName:         cfg.RealName,
		QuitMessage:      cfg.QuitMessage,
		ReconnectFreq:    cfg.ReconnectFreq,
		ConnectTimeout:   cfg.ConnectTimeout,
		DiscoveryDelay:   cfg.DiscoveryDelay,
		DirectoryTimeout: cfg.DirectoryTimeout,
	})
	con := newConsole(engine, os.Stdout)
	con.attach()

	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})

	if err := start(engine, store, cfg, opts); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	go con.readLoop(os.Stdin, stop)

	err = g.Wait()
	logger.Log.Info().Msg("Shutdown complete")
	return err
}

// start restores saved servers and connects the one given on the command line
func start(engine *app.Engine, store *storage.Storage, cfg config.Config, opts *options) error {
	records, err := store.Load()
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load saved servers")
	} else if err := engine.Restore(records, cfg.AutoConnect && !opts.noAuto); err != nil {
		return err
	}

	if opts.server == "" {
		return nil
	}
	_, err = engine.Connect(app.ConnectRequest{
		Host:     opts.server,
		Port:     opts.port,
		Nickname: opts.nick,
		Password: opts.password,
		TLS:      opts.tls,
	})
	return err
}
