package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mirubo/pixpal/pkg/bridge"
	"github.com/mirubo/pixpal/pkg/gateway"
	"github.com/mirubo/pixpal/pkg/talk"
)

var (
	serveContext string
	serveAddr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the device gateway",
	Long: `Run the websocket gateway for avatar devices.

Each device connection holds one conversation: user turns come in as
frames, the decoded response streams back as delta frames followed by
tags, function-call and final frames. Prometheus metrics are exposed
on /metrics and liveness on /healthz.

Example:
  pixpal serve --addr :8900`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveContext, "context", "c", "", "context name to use")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: serve_addr from engine.yaml, else :8900)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := loadServiceConfig(serveContext)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if IsVerbose() {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	talk.InitMetrics()

	opts, err := engineOptions(svc, log)
	if err != nil {
		return err
	}
	archive, err := openArchive(svc)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
		opts = append(opts, talk.WithArchive(archive))
	}
	if svc.CapturesDir != "" {
		opts = append(opts, talk.WithCapturer(dirCapturer(svc.CapturesDir, log)))
	}

	b := bridge.NewHTTP(bridge.WithHTTPLogger(log))
	defer b.Close()
	engine := talk.New(b, opts...)

	addr := serveAddr
	if addr == "" {
		addr = svc.ServeAddr
	}
	if addr == "" {
		addr = ":8900"
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	gw := gateway.New(engine, gateway.WithLogger(log))
	if err := gw.Serve(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("gateway stopped")
	return nil
}
