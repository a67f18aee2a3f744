package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/observability/logging"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	metricsAddr := flag.String("metrics", ":9464", "Listen address for the Prometheus metrics endpoint (empty disables)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NFTMARKET_ENV"))
	logger := logging.Setup("nftmarketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if env != "" {
		cfg.Environment = env
	}

	node, err := core.NewNode(cfg, logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}
	defer node.Close()

	var metricsSrv *http.Server
	if strings.TrimSpace(*metricsAddr) != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
		logger.Info("Metrics endpoint listening", slog.String("addr", *metricsAddr))
	}

	logger.Info("Marketplace node started",
		slog.String("environment", cfg.Environment),
		slog.Bool("in_memory", cfg.InMemory),
		slog.String("data_dir", cfg.DataDir))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
