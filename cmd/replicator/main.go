// cmd/replicator/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/config"
	"github.com/tamzrod/harp-replicator/internal/logging"
	"github.com/tamzrod/harp-replicator/internal/metrics"
	"github.com/tamzrod/harp-replicator/internal/sink"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "replicator.yaml", "path to the YAML config")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: replicator [-config path] [config.yaml]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 0 {
		*cfgPath = flag.Arg(0)
	}

	boot := logging.Default()

	if err := run(*cfgPath); err != nil {
		boot.Error().Err(err).Msg("replicator: fatal")
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log := logging.New(cfg.Replicator.Logging, version)
	log.Info().Str("config", cfgPath).Int("units", len(cfg.Replicator.Units)).Msg("replicator: starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Metrics endpoint
	// --------------------

	var srv *http.Server
	if addr := cfg.Replicator.Metrics.Listen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("listen", addr).Msg("metrics: server failed")
			}
		}()
		log.Info().Str("listen", addr).Msg("metrics: serving /metrics")
	}

	// --------------------
	// Sinks
	// --------------------

	sinks, err := buildSinks(cfg.Replicator, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warn().Err(err).Msg("sinks: close")
		}
	}()

	// --------------------
	// Build per-unit pipelines
	// --------------------

	var wg sync.WaitGroup
	for _, unit := range cfg.Replicator.Units {
		if err := startUnit(ctx, &wg, cfg, unit, sinks, log); err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("unit %s: %w", unit.ID, err)
		}
	}

	// --------------------
	// Block until signalled
	// --------------------

	<-ctx.Done()
	log.Info().Msg("replicator: shutting down")
	wg.Wait()

	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}
	return nil
}

func buildSinks(r config.ReplicatorConfig, log zerolog.Logger) (sink.Fanout, error) {
	var out sink.Fanout

	if r.MQTT.Enabled {
		m, err := sink.ConnectMQTT(r.MQTT, log.With().Str("component", "mqtt").Logger())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	if r.InfluxDB.Enabled {
		i, err := sink.ConnectInflux(r.InfluxDB, log.With().Str("component", "influxdb").Logger())
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out = append(out, i)
	}

	return out, nil
}
