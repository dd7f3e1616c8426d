package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printer_monitor/internal/config"
	"printer_monitor/internal/handlers"
	"printer_monitor/internal/logger"
	"printer_monitor/internal/metrics"
	"printer_monitor/internal/publisher"
	"printer_monitor/internal/repository"
	"printer_monitor/internal/repository/db"
	"printer_monitor/internal/server"
	"printer_monitor/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 30 * time.Second
)

// sinks holds the optional outbound connections that must be closed on shutdown.
type sinks struct {
	mqtt   *publisher.MQTTPublisher
	influx *publisher.InfluxSink
}

func (s sinks) close() {
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
}

func main() {
	// load configs/config.yml
	cfg, err := config.Load("configs")
	if err != nil {
		logger.New(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.New(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	sqlDB, err := openDB(cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(sqlDB, cfg.History.MaxEntries)
	m := metrics.New()
	hub := publisher.NewHub()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	out := dialSinks(ctx, cfg, log)
	cancel()

	pubs := publisher.Multi{hub, m}
	if out.mqtt != nil {
		pubs = append(pubs, out.mqtt)
	}
	if out.influx != nil {
		pubs = append(pubs, out.influx)
	}

	registry := service.NewRegistry(repos.Devices, service.EngineDeps{
		Transport: service.HTTPTransportFactory(&http.Client{}),
		States:    repos.States,
		History:   repos.History,
		Publisher: pubs,
		Observer:  m,
		Log:       log.Named("engine"),
	})

	ctx, cancel = context.WithTimeout(context.Background(), startupTimeout)
	res, err := registry.Reconcile(ctx, cfg.Printers)
	cancel()
	if err != nil {
		log.Fatalw("failed to start printers", "err", err)
	}
	log.Infow("printers_reconciled", "added", res.Added, "removed", res.Removed, "skipped", res.Skipped)

	services := service.NewService(registry, repos, service.AuthOptions{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
	})

	if out.mqtt != nil {
		if err := out.mqtt.SubscribeCommands(services.Control); err != nil {
			log.Warnw("mqtt_commands_disabled", "err", err)
		}
	}

	apiHandler := handlers.NewHandler(services, hub, m.Handler(), log.Named("http"))

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	waitForShutdown(srv, registry, hub, out, log)
}

// openDB initializes the SQLite database.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening database", "path", path)
	return db.InitDB(path)
}

// dialSinks connects the optional MQTT and InfluxDB outputs. A sink that cannot
// be reached is logged and skipped; the engine runs without it.
func dialSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) sinks {
	var out sinks
	if cfg.MQTT.Enabled {
		client, err := publisher.DialMQTT(cfg.MQTT)
		if err != nil {
			log.Errorw("mqtt_unavailable", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			out.mqtt = publisher.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
		}
	}
	if cfg.Influx.Enabled {
		sink, err := publisher.DialInflux(ctx, cfg.Influx, log.Named("influx"))
		if err != nil {
			log.Errorw("influx_unavailable", "url", cfg.Influx.URL, "err", err)
		} else {
			out.influx = sink
		}
	}
	return out
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
// Pollers stop first so no event is published into closed sinks.
func waitForShutdown(srv *server.Server, registry *service.Registry, hub *publisher.Hub, out sinks, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	registry.Shutdown()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	out.close()
}
