// Command moviematch serves the swipe API and offers a terminal client for it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/amaumene/moviematch/internal/config"
	"github.com/amaumene/moviematch/internal/constants"
	"github.com/amaumene/moviematch/internal/models"
	"github.com/amaumene/moviematch/pkg/logger"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           constants.AppName,
	Short:         "Endless movie and anime swipe stream backed by TMDB",
	Version:       constants.AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, log)
	},
}

var swipeCmd = &cobra.Command{
	Use:   "swipe",
	Short: "Open a session and print the stream to the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		likeAt, _ := cmd.Flags().GetInt("like-at")

		app, err := NewApp(cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		return runSwipe(cmd.Context(), app, cmd.OutOrStdout(), count, likeAt)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $CONFIG_FILE or ./config.json)")

	swipeCmd.Flags().Int("count", 20, "number of items to show")
	swipeCmd.Flags().Int("like-at", 0, "like the n-th item and stop (0 dislikes everything)")

	rootCmd.AddCommand(serveCmd, swipeCmd)
}

func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.StartBackground(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[App] starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infof("[App] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSwipe walks a fresh session, disliking every item until the likeAt-th
// one is liked or count items have been shown.
func runSwipe(ctx context.Context, app *App, out io.Writer, count, likeAt int) error {
	store := app.services.Sessions

	sess, err := store.Create(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer store.Delete(sess.ID())

	for i := 1; i <= count; i++ {
		item, ok := sess.Current()
		if !ok {
			return errors.New("session has no items")
		}
		fmt.Fprintf(out, "%3d. [%-7s] %s (%d%%)\n", i, item.Catalog, item.Title, item.MatchRate)

		action := models.InteractionDislike
		if i == likeAt {
			action = models.InteractionLike
		}

		result, err := sess.Swipe(action)
		if err != nil {
			return err
		}
		if result.Match {
			fmt.Fprintf(out, "match: %s (tmdb %d)\n", result.Item.Title, result.Item.TMDBID)
			return nil
		}
	}

	status := sess.Status()
	fmt.Fprintf(out, "no match after %d items (buffer %d, general pages %v, anime pages %v)\n",
		count, status.Length, status.GeneralPages, status.AnimePages)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
