package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/db"
	"github.com/finbridge/finbridge/logger"
	"github.com/finbridge/finbridge/plugin"
	"github.com/finbridge/finbridge/processing"
	"github.com/finbridge/finbridge/server"
	"github.com/finbridge/finbridge/version"

	_ "github.com/finbridge/finbridge/plugins"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the middleware host",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		core := settings.Core()

		database, err := db.Open(core.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()
		store := db.NewStore(database)

		manager := plugin.NewManager(core.Plugins.Directory, settings, version.Version, logger.Named("plugins"))
		host := &plugin.HostContext{
			Settings: settings,
			DB:       database,
			Logger:   logger.Logger,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		results, err := manager.InitializeAll(ctx, host)
		if err != nil {
			return err
		}
		for name, ok := range results {
			if !ok {
				logger.Warnw("plugin failed to initialize", "plugin", name)
			}
		}
		defer manager.ShutdownAll(context.Background())
		defer logger.Cleanup()

		// the watcher re-reads the side-store on change; edited credentials
		// take effect on the next plugin reload
		watcher, err := config.NewWatcher(settings)
		if err != nil {
			logger.Warnw("config watcher unavailable", "error", err)
		} else {
			watcher.OnReload(func(*config.Settings) error {
				logger.Infow("plugin configuration changed, reload plugins to apply")
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}

		processor := processing.New(core.Processing, manager, store)
		srv := server.New(core.Web, manager, processor, store, host)

		logger.Infow("starting", "version", version.Version,
			"plugins", len(results), "addr", core.Web.Host, "port", core.Web.Port)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
