package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"benritz/sheetsql/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the structure, export and generate-sql HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		introspector, err := newIntrospector(cfg)
		if err != nil {
			return err
		}
		if logrus.GetLevel() < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := server.New(server.Options{
			Addr:           cfg.Server.Addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logrus.StandardLogger(),
		}, introspector)

		errCh := make(chan error, 1)
		go func() {
			logrus.WithField("addr", srv.Addr).Info("server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		logrus.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (default: any)")
	serveCmd.Flags().Int("concurrency", 0, "number of tables read at once")
	serveCmd.Flags().String("timeout", "", "deadline for reading a catalog, e.g. 30s")
	rootCmd.AddCommand(serveCmd)
}
