package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"educaid/internal/audit"
	cyclehandler "educaid/internal/cycle/handler"
	cyclemetrics "educaid/internal/cycle/metrics"
	"educaid/internal/cycle/service"
	academicyearstore "educaid/internal/cycle/store/academicyear"
	configstore "educaid/internal/cycle/store/config"
	pendingstore "educaid/internal/cycle/store/pending"
	slotstore "educaid/internal/cycle/store/slots"
	snapshotstore "educaid/internal/cycle/store/snapshot"
	"educaid/internal/cycle/sweeper"
	docstore "educaid/internal/docs/store"
	"educaid/internal/notify"
	"educaid/internal/platform/config"
	"educaid/internal/platform/httpserver"
	"educaid/internal/platform/logger"
	"educaid/internal/platform/postgres"
	redisclient "educaid/internal/platform/redis"
	rosterstore "educaid/internal/roster/store"
	adminmw "educaid/pkg/platform/middleware/admin"
	"educaid/pkg/platform/middleware/requestid"
	"educaid/pkg/platform/middleware/requesttime"
)

// main wires stores, the lifecycle service, and the HTTP surface. Business
// logic lives in the internal packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		configStore   service.ConfigStore
		snapshotStore service.SnapshotStore
		yearStore     service.AcademicYearStore
		rosterStore   service.RosterStore
		slotStore     service.SlotStore
		docStore      service.DocumentStore
		pendingStore  service.PendingStore
		txRunner      service.StoreTx
	)

	pendingMemory := pendingstore.NewMemory()
	pendingStore = pendingMemory
	pendingPurger := sweeper.PendingPurger(pendingMemory)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema bootstrap failed", "error", err)
			os.Exit(1)
		}
		configStore = configstore.NewPostgres(db)
		snapshotStore = snapshotstore.NewPostgres(db)
		yearStore = academicyearstore.NewPostgres(db)
		rosterStore = rosterstore.NewPostgres(db)
		slotStore = slotstore.NewPostgres(db)
		docStore = docstore.NewPostgres(db)
		txRunner = newCyclePostgresTx(db)
		log.Info("using postgres stores")
	} else {
		configMem := configstore.NewMemory()
		snapshotMem := snapshotstore.NewMemory()
		yearMem := academicyearstore.NewMemory()
		rosterMem := rosterstore.NewMemory()
		configStore = configMem
		snapshotStore = snapshotMem
		yearStore = yearMem
		rosterStore = rosterMem
		slotStore = slotstore.NewMemory()
		docStore = docstore.NewMemory()
		txRunner = service.NewMemoryStoreTx(configMem, snapshotMem, yearMem, rosterMem)
		log.Warn("EDUCAID_DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := redisclient.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		redisPending := pendingstore.NewRedis(rdb.Client)
		pendingStore = redisPending
		pendingPurger = redisPending
		log.Info("using redis pending review store")
	}

	auditor := audit.Publisher(audit.NewMemory())
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := audit.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka client failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaPub.Close(closeCtx)
		}()
		auditor = kafkaPub
		log.Info("audit events streaming to kafka", "topic", cfg.Kafka.Topic)
	}

	dispatcher := notify.NewDispatcher(&notify.LogSender{Logger: log}, log, cfg.NotifyWorkers)

	svc := service.New(configStore, snapshotStore, yearStore, pendingStore, rosterStore, log,
		service.WithTx(txRunner),
		service.WithSlotStore(slotStore),
		service.WithDocumentStore(docStore),
		service.WithNotifier(dispatcher),
		service.WithAuditPublisher(auditor),
		service.WithMetrics(cyclemetrics.New()),
		service.WithPendingTTL(cfg.PendingReviewTTL),
	)

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, log))
		cyclehandler.New(svc, log).Register(r)
	})

	sweep := sweeper.New(pendingPurger, log)
	if err := sweep.Start(); err != nil {
		log.Error("sweeper start failed", "error", err)
		os.Exit(1)
	}
	defer sweep.Stop()

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting educaid lifecycle server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
