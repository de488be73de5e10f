// Command craftwork-janitor runs scheduled maintenance: pruning stale
// session index entries and reporting audit trail statistics. Session keys
// expire on their own in Redis; only the per-user index sets need sweeping.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/config"
	"github.com/craftwork-crm/craftwork/pkg/sessions"
	"github.com/craftwork-crm/craftwork/pkg/storage/postgres"
)

const (
	pruneSchedule = "*/15 * * * *"
	statsSchedule = "0 * * * *"

	jobTimeout = 2 * time.Minute
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    2,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	redisClient, err := sessions.NewRedisClient(sessions.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	sessionStore := sessions.NewStore(redisClient, cfg.Session.TTL)
	auditTrail, err := audit.NewDBLogger(db)
	if err != nil {
		log.WithError(err).Fatal("failed to open audit trail")
	}

	scheduler := cron.New()

	if _, err := scheduler.AddFunc(pruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		pruned, err := sessionStore.PruneIndexes(ctx)
		if err != nil {
			log.WithError(err).Error("session index prune failed")
			return
		}
		log.WithField("pruned", pruned).Info("session index prune complete")
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule session prune")
	}

	if _, err := scheduler.AddFunc(statsSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		since := time.Now().Add(-24 * time.Hour)
		stats, err := auditTrail.GetStats(ctx, &since, nil)
		if err != nil {
			log.WithError(err).Error("audit stats report failed")
			return
		}
		log.WithFields(logrus.Fields{
			"total_events":   stats.TotalEvents,
			"access_denials": stats.AccessDenials,
			"window_hours":   24,
		}).Info("audit trail report")
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule audit report")
	}

	scheduler.Start()
	log.WithFields(logrus.Fields{
		"prune_schedule": pruneSchedule,
		"stats_schedule": statsSchedule,
	}).Info("janitor started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx := scheduler.Stop()
	<-ctx.Done()
	log.Info("janitor stopped")
}
