package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Zachkp/folio/internal/carousel"
	"github.com/Zachkp/folio/internal/catalog"
	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/logging"
	"github.com/Zachkp/folio/internal/store"
	"github.com/Zachkp/folio/internal/web"
)

var (
	verbose bool
	port    string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Portfolio site with live carousels",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file")
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(contentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.GinMode == gin.DebugMode)
	if err != nil {
		return err
	}
	defer logger.Sync()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if n, err := st.PruneVisitors(ctx, store.Retention); err != nil {
		logger.Warn("privacy cleanup", zap.Error(err))
	} else if n > 0 {
		logger.Info("privacy cleanup", zap.Int64("removed", n))
	}
	if _, err := st.PruneCarouselEvents(ctx, store.EventRetention); err != nil {
		logger.Warn("carousel event cleanup", zap.Error(err))
	}

	site := catalog.Default()
	if cfg.ContentPath != "" {
		if site, err = catalog.ParseFile(cfg.ContentPath); err != nil {
			return err
		}
	}
	cat := catalog.New(site)

	carousels := carousel.NewManager(cat, st, nil, logger, carousel.Config{
		IdleTimeout:      cfg.SessionIdle,
		UnwatchedTimeout: cfg.UnwatchedIdle,
		MaxSessions:      cfg.MaxSessions,
	})

	var notifier contact.Notifier
	if cfg.SMTP.Enabled() {
		notifier = contact.NewMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP credentials not configured; enquiries are only stored")
	}

	if !cfg.AdminEnabled() {
		logger.Info("admin area disabled; set ADMIN_PASSWORD to enable it")
	}

	srv, err := web.New(web.Deps{
		Catalog:       cat,
		Carousels:     carousels,
		Store:         st,
		Contact:       contact.NewService(st, notifier, logger),
		Logger:        logger,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		StaticDir:     "./static",
		ImagesDir:     "./images",
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return carousels.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if cfg.WatchContent {
		w := catalog.NewWatcher(cat, cfg.ContentPath, logger)
		g.Go(func() error { return w.Run(ctx) })
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}
