package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nasmon/internal/classes"
	"nasmon/internal/clock"
	"nasmon/internal/config"
	"nasmon/internal/database"
	"nasmon/internal/engine"
	"nasmon/internal/events"
	"nasmon/internal/ha"
	"nasmon/internal/handlers"
	"nasmon/internal/logging"
	"nasmon/internal/mail"
	"nasmon/internal/metrics"
	"nasmon/internal/registry"
	"nasmon/internal/repository"
	"nasmon/internal/server"
	"nasmon/internal/services"
	"nasmon/internal/sources"
	"nasmon/internal/ticket"
	"nasmon/internal/tracing"

	"github.com/opentracing/opentracing-go"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("could not load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.Setup(cfg.Log)
	log.Infof("Starting alertd %s (product=%s, node=%s)", version, cfg.Product, cfg.HA.Node)

	tracer, closeTracer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Warnf("Tracing disabled: %v", err)
	} else {
		opentracing.SetGlobalTracer(tracer)
		defer closeTracer()
	}

	db, err := database.NewConnection(cfg.Db)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Could not ensure database schema: %v", err)
	}

	alertStore := repository.NewPostgresAlertStore(db)
	serviceStore := repository.NewPostgresServiceStore(db)
	classCfgStore := repository.NewPostgresClassConfigStore(db)
	healthChecker := repository.NewPostgresHealthChecker(db)

	bus := events.NewKafkaBus(cfg.Kafka.Broker, cfg.Kafka.Topic, log)
	defer bus.Close()

	mailer := mail.NewSmtpMailer(cfg.Smtp)
	tickets := ticket.NewHTTPClient(cfg.Support.Endpoint)

	classRegistry := registry.NewClassRegistry()
	if err := classes.Register(classRegistry); err != nil {
		log.Fatalf("Could not register alert classes: %v", err)
	}

	sourceRegistry := registry.NewSourceRegistry()
	if err := sources.Register(sourceRegistry, cfg.Checks); err != nil {
		log.Fatalf("Could not register alert sources: %v", err)
	}

	manager := services.NewManager(serviceStore, services.Deps{Mailer: mailer, Log: log})
	if err := manager.Load(context.Background()); err != nil {
		log.Fatalf("Could not load alert services: %v", err)
	}

	system := ha.NewLocalSystem(version, cfg.HA.Licensed)
	var peer ha.PeerClient
	if cfg.HA.Licensed && cfg.HA.PeerURL != "" {
		peer = ha.NewHTTPPeerClient(cfg.HA.PeerURL)
	}
	clk := clock.RealClock{}
	coordinator := ha.NewCoordinator(cfg.HA.Licensed, cfg.HA.Node, peer, system, clk, log)

	eng := engine.New(engine.Params{
		Classes:      classRegistry,
		Sources:      sourceRegistry,
		Store:        alertStore,
		ClassConfigs: classCfgStore,
		Clock:        clk,
		Coordinator:  coordinator,
		System:       system,
		Bus:          bus,
		Mailer:       mailer,
		Tickets:      tickets,
		Services:     manager,
		Metrics:      metrics.NewMetrics(),
		Log:          log,
		Product:      cfg.Product,
		Support:      cfg.Support,
	})

	if err := eng.Bootstrap(context.Background()); err != nil {
		log.Fatalf("Could not bootstrap alert engine: %v", err)
	}

	eng.Start()

	srv := server.New(
		handlers.NewAlertHandler(eng),
		handlers.NewServiceHandler(manager, eng),
		handlers.NewClassHandler(eng, classRegistry, cfg.Product),
		handlers.NewPeerHandler(eng, system),
		handlers.NewHealthHandler(healthChecker),
		cfg.Http.Port,
	)

	go func() {
		if err := srv.Start(); err != nil {
			log.Errorf("HTTP server stopped: %v", err)
		}
	}()

	// Startup is done. Alerts deferred while booting go out now.
	system.SetState(ha.StateReady)
	eng.OnSystemReady()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	system.SetState(ha.StateShutdown)

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("HTTP shutdown failed: %v", err)
	}
	eng.Stop()
}
