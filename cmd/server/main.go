package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/roomchat/application"
	"github.com/lk2023060901/roomchat/internal/chat"
	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := application.New()
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, application.Usage)
		os.Exit(1)
	}
	defer log.Sync()

	if _, err := maxprocs.Set(maxprocs.Logger(log.S().Infof)); err != nil {
		log.Warn("set GOMAXPROCS failed", zap.Error(err))
	}

	if err := run(app); err != nil {
		log.Error("chat server exited", zap.Stringer("kind", merr.KindOf(err)), zap.Error(err))
		os.Exit(1)
	}
	fmt.Println("Good-bye!")
}

func run(app *application.Application) error {
	cfg := app.ServerConfig()
	if cfg.Reserved() {
		log.Warn("port is reserved, binding may require privileges",
			zap.Int("port", cfg.Port), zap.Int("limit", chat.ReservedPortLimit))
	}

	srv, err := chat.NewServer(cfg)
	if err != nil {
		return err
	}
	srv.SetLogger(app.Logger("chat"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Register(prometheus.DefaultRegisterer)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("Chat server listening on %s with %d rooms\n", srv.Addr(), cfg.MaxRooms)
	fmt.Println("Press Enter or Ctrl+C to shut down.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Wait()
	})
	g.Go(func() error {
		source := application.WaitShutdown(gctx, os.Stdin)
		log.Info("shutdown triggered", zap.String("source", string(source)))

		sctx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return srv.Shutdown(sctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return application.ServeMetrics(gctx, cfg.MetricsAddr, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		})
	}
	return g.Wait()
}
