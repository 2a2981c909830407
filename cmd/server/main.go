// Command server runs the contact/recipient store as an HTTP service.
//
// It wires configuration, logging, OpenTelemetry, the SQLite-backed store,
// the identity resolver with its merge engine, the change notifier and remap
// cache, the background job queue, and the contact search index, then serves
// the versioned REST API until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-contact-backend/docs"
	"github.com/tbourn/go-contact-backend/internal/config"
	"github.com/tbourn/go-contact-backend/internal/domain"
	httpapi "github.com/tbourn/go-contact-backend/internal/http"
	"github.com/tbourn/go-contact-backend/internal/jobs"
	"github.com/tbourn/go-contact-backend/internal/notify"
	"github.com/tbourn/go-contact-backend/internal/observability"
	"github.com/tbourn/go-contact-backend/internal/repo"
	"github.com/tbourn/go-contact-backend/internal/search"
	"github.com/tbourn/go-contact-backend/internal/services"
	"github.com/tbourn/go-contact-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("db tracing disabled")
		}
	}

	notifier := notify.NewNotifier(cfg.Resolver.NotifyWindow)
	defer notifier.Close()
	remap := notify.NewRemapCache(cfg.Resolver.RemapCacheCap)
	queue := jobs.NewQueue(cfg.Resolver.JobQueueSize, log.Logger)

	merger := services.NewMergeEngine(log.Logger)
	resolver := services.NewResolver(db, merger, notifier, remap, queue, log.Logger)
	if cfg.Resolver.SelfACI != "" {
		aci, err := domain.ParseACI(cfg.Resolver.SelfACI)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid SELF_ACI")
		}
		resolver.SelfACI = aci
	}
	if cfg.Resolver.SelfE164 != "" {
		e164, err := domain.ParseE164(cfg.Resolver.SelfE164)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid SELF_E164")
		}
		resolver.SelfE164 = e164
	}
	if cfg.Resolver.MaxRetries > 0 {
		resolver.MaxRetries = cfg.Resolver.MaxRetries
	}

	dirSvc := &services.DirectoryService{DB: db, Resolver: resolver, Notifier: notifier, Log: log.Logger}
	syncSvc := &services.SyncService{DB: db, Resolver: resolver, Notifier: notifier, Log: log.Logger}

	// Contact search index, kept warm by change notifications.
	idx := search.NewContactIndex()
	if err := warmIndex(ctx, db, idx); err != nil {
		log.Warn().Err(err).Msg("search index warmup incomplete")
	}
	notifier.Subscribe(func(ids []domain.RecipientID) {
		refreshIndexEntries(context.Background(), db, idx, ids)
	})

	// Job handlers. Profile refresh would call the profile service in a full
	// client; here it re-indexes so search reflects the latest row.
	queue.Handle(jobs.KindRefreshProfile, func(ctx context.Context, j jobs.Job) error {
		refreshIndexEntries(ctx, db, idx, []domain.RecipientID{j.RecipientID})
		return nil
	})
	queue.Handle(jobs.KindNumberChanged, func(ctx context.Context, j jobs.Job) error {
		log.Info().Int64("recipient_id", int64(j.RecipientID)).Msg("number changed")
		return nil
	})
	go func() {
		if err := queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("job queue stopped")
		}
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{
		Resolver:  resolver,
		Directory: dirSvc,
		Sync:      syncSvc,
		Index:     idx,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	queue.Drain(shutCtx)
	notifier.Flush()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// warmIndex loads every discoverable recipient into the search index at boot.
func warmIndex(ctx context.Context, db *gorm.DB, idx *search.ContactIndex) error {
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		recs, err := repo.ListRecipientsPage(ctx, db, offset, pageSize)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			idx.Upsert(rec.ID, rec.ProfileName, rec.E164Value())
		}
		if len(recs) < pageSize {
			return nil
		}
	}
}

// refreshIndexEntries re-reads the given rows and updates the search index,
// dropping entries whose rows were merged away.
func refreshIndexEntries(ctx context.Context, db *gorm.DB, idx *search.ContactIndex, ids []domain.RecipientID) {
	for _, id := range ids {
		rec, err := repo.GetRecipient(ctx, db, id)
		if err != nil {
			idx.Remove(id)
			continue
		}
		idx.Upsert(rec.ID, rec.ProfileName, rec.E164Value())
	}
}
