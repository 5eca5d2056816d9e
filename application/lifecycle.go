package application

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	zlog "github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// TriggerSource 描述触发关闭的来源。
type TriggerSource string

const (
	TriggerStdin   TriggerSource = "stdin"
	TriggerSignal  TriggerSource = "signal"
	TriggerContext TriggerSource = "context"
)

// WaitShutdown 阻塞直到标准输入读到一行、收到 SIGINT/SIGTERM 或 ctx 结束。
// in 读到 EOF 时不触发关闭，只继续等待信号。
func WaitShutdown(ctx context.Context, in io.Reader) TriggerSource {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan struct{})
	if in != nil {
		go func() {
			if _, err := bufio.NewReader(in).ReadString('\n'); err == nil {
				close(lines)
			}
		}()
	}

	select {
	case <-lines:
		return TriggerStdin
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			return TriggerContext
		}
		return TriggerSignal
	}
}

const metricsShutdownTimeout = 3 * time.Second

// ServeMetrics 在 addr 上暴露 /metrics 与 /debug/pprof/，直到 ctx 结束。
func ServeMetrics(ctx context.Context, addr string, r prometheus.Registerer, g prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return merr.WrapErrConfigInvalid("metricsAddr", addr, err.Error())
	}
	return serveMetrics(ctx, ln, r, g)
}

func serveMetrics(ctx context.Context, ln net.Listener, r prometheus.Registerer, g prometheus.Gatherer) error {
	metrics.Register(r)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	// pprof 注册在 DefaultServeMux 上
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	zlog.Info("metrics endpoint listening", zap.Stringer("addr", ln.Addr()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return merr.WrapErrTransportIO("serve metrics", err)
	}
	return nil
}
