package main

import (
	"context"
	"fmt"
	"os"

	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/crm"
	"github.com/localnerve/crmsync/internal/database"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/notify"
	"github.com/spf13/cobra"
)

// cli carries the flags shared by every command.
type cli struct {
	envFile  string
	embedded string
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "crmsync",
		Short:         "Offline-first CRM data sync client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.envFile != "" {
				return config.LoadEnvFile(c.envFile)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.envFile, "env", "f", "", "path to a .env file")
	rootCmd.PersistentFlags().StringVar(&c.embedded, "embedded", "", "use an in-process document store in this SQLite file instead of the server")

	rootCmd.AddCommand(
		c.statusCmd(),
		c.syncCmd(),
		c.pullCmd(),
		c.pushCmd(),
		c.watchCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.listCmd(),
		c.addCmd(),
		c.pendingCmd(),
		c.roleCmd(),
		c.teamCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is an opened crm.Session plus what must be released with it.
type session struct {
	*crm.Session
	remote  cloud.Remote
	release func()
}

func (s *session) Close(ctx context.Context) error {
	err := s.Session.Close(ctx)
	if s.release != nil {
		s.release()
	}
	return err
}

// open loads the client configuration and opens the local store against the
// configured remote.
func (c *cli) open() (*session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	logging.Init("crmsync", logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	remote, release, err := c.remote(cfg)
	if err != nil {
		return nil, err
	}

	notifier := func(err error) {
		fmt.Fprintf(os.Stderr, "warning: local save failed: %v\n", err)
	}
	s, err := crm.Open(cfg, remote, notifier)
	if err != nil {
		release()
		return nil, err
	}
	return &session{Session: s, remote: remote, release: release}, nil
}

func (c *cli) remote(cfg *config.ClientConfig) (cloud.Remote, func(), error) {
	if c.embedded == "" {
		return cloud.NewHTTPRemote(cfg.ServerURL, cfg.NotifyURL, cfg.Token, cfg.RequestTimeout), func() {}, nil
	}

	serverCfg := &config.Config{DBType: "sqlite", DBDatabase: c.embedded, DBConnectionLimit: 1}
	db, err := database.Connect(serverCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	hub := notify.NewHub(notify.Config{Addr: "127.0.0.1:0"})
	release := func() {
		_ = hub.Stop()
		_ = database.Close(db)
	}
	return cloud.NewServiceRemote(db, hub, cfg.UserID), release, nil
}

// withCloud opens a session, runs the role lookup and startup sync, calls fn
// and closes the session, flushing any armed push.
func (c *cli) withCloud(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()

	if _, err := s.InitUserRole(ctx); err != nil {
		return err
	}
	if _, err := s.SyncFromCloud(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}

// withLocal opens a session without contacting the remote.
func (c *cli) withLocal(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()
	return fn(cmd.Context(), s)
}
