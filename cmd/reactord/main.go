// Command reactord is the daemon entrypoint: flag-driven config override,
// structured startup logging, a signal-driven shutdown, plus a metrics
// HTTP endpoint using prometheus/client_golang's promhttp handler.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kartikbazzad/reactorcore/internal/config"
	"github.com/kartikbazzad/reactorcore/internal/engine"
	"github.com/kartikbazzad/reactorcore/internal/logger"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional)")
	dataDir := flag.String("data-dir", "./data", "directory for database files")
	driver := flag.String("driver", "memory", "persistence driver: memory|sqlite")
	metricsAddr := flag.String("metrics-addr", "", "enable a /metrics HTTP endpoint at this address (empty = disabled)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.DataDir = *dataDir
	cfg.Persist.Driver = *driver
	if cfg.Persist.SQLitePath == "" {
		cfg.Persist.SQLitePath = cfg.DataDir + "/reactorcore.db"
	}

	lg := logger.Default()
	lg.Info("starting reactorcore")
	lg.Info("data directory: %s", cfg.DataDir)
	lg.Info("persistence driver: %s", cfg.Persist.Driver)

	eng, err := engine.Open(cfg, lg)
	if err != nil {
		log.Fatalf("open engine: %v", err)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(eng.Metrics().Registry(), promhttp.HandlerOpts{}))
		go func() {
			lg.Info("metrics endpoint at http://%s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				lg.Error("metrics server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down")
	if err := eng.Close(); err != nil {
		lg.Error("error during shutdown: %v", err)
	}
	lg.Info("reactorcore stopped")
}
