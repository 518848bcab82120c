package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/EOSTribe/eos-chronicle/bus"
	"github.com/EOSTribe/eos-chronicle/config"
	"github.com/EOSTribe/eos-chronicle/internal/receiver"
	"github.com/EOSTribe/eos-chronicle/logger"
)

var Version = "dev"

var allCategories = []string{
	"startup", "receiver", "fork", "statedb", "abi", "enforce",
	"debug-receiver",
}

type mainConfig struct {
	Host             string   `name:"host" default:"localhost" help:"Host to connect to (state-history endpoint)"`
	Port             string   `name:"port" default:"8080" help:"Port to connect to"`
	DataDir          string   `name:"data-dir" required:"true" help:"Directory for the receiver state database"`
	StateDBSize      int      `name:"receiver-state-db-size" default:"1024" help:"State database size in MB"`
	ReportEvery      uint32   `name:"report-every" default:"10000" help:"Report current state every N blocks, 0 disables"`
	MaxQueueSize     uint32   `name:"max-queue-size" default:"10000" help:"Queue depth that triggers backpressure"`
	BlacklistActions []string `name:"blacklist-actions" help:"Extra account:action pairs to drop from traces"`
	LogFile          string   `name:"log-file" help:"Append log output to this file"`
	LogFilter        []string `name:"log-filter" help:"Only log these categories"`
	Debug            bool     `name:"debug" help:"Enable debug logging"`
	MetricsListen    string   `name:"metrics-listen" help:"Address for /metrics and /health, empty disables"`
	PprofPort        string   `name:"pprof-port" help:"Port for the pprof server, empty disables"`
}

func main() {
	config.CheckVersion(Version)

	var cfg mainConfig
	if err := config.Load(&cfg, os.Args[1:]); err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.RegisterCategories(allCategories...)
	if cfg.Debug {
		logger.SetMinLevel(logger.LevelDebug)
	} else {
		logger.SetCategoryFilter(cfg.LogFilter)
	}

	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile); err != nil {
			logger.Fatal("Failed to open log file %s: %v", cfg.LogFile, err)
		}
		defer logger.Close()
	}

	if cfg.PprofPort != "" {
		go func() {
			pprofAddr := "localhost:" + cfg.PprofPort
			logger.Printf("startup", "Starting pprof server on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				logger.Printf("startup", "pprof server failed: %v", err)
			}
		}()
	}

	reactor := bus.NewReactor()
	rcv, err := receiver.New(receiver.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		StateDir:         filepath.Join(cfg.DataDir, "receiver-state"),
		StateDBSizeMB:    cfg.StateDBSize,
		ReportEvery:      cfg.ReportEvery,
		MaxQueueSize:     cfg.MaxQueueSize,
		BlacklistActions: cfg.BlacklistActions,
	}, reactor)
	if err != nil {
		logger.Fatal("Failed to initialize receiver: %v", err)
	}
	defer rcv.Close()

	logger.Printf("startup", "chronicle-receiver %s connecting to %s:%s", Version, cfg.Host, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "OK\n")
		})
		metricsServer = &http.Server{
			Addr:         cfg.MetricsListen,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return rcv.Run(gctx)
	})

	if metricsServer != nil {
		group.Go(func() error {
			logger.Printf("startup", "Metrics server started on %s", cfg.MetricsListen)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)
			return nil
		})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-stop:
			logger.Printf("startup", "Shutting down...")
			rcv.AbortReceiver()
		case <-gctx.Done():
		}
	}()

	if err := group.Wait(); err != nil {
		logger.Fatal("Receiver failed: %v", err)
	}

	logger.Printf("startup", "Shutdown complete")
}
