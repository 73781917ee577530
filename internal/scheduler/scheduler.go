package scheduler

import (
	"context"
	"fmt"
	"time"

	"loginsight-backend/config"
	"loginsight-backend/internal/schema"
	"loginsight-backend/internal/session"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

const jobTimeout = 2 * time.Minute

func newCron() *cron.Cron {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	return cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

// NewScheduler registers the schema refresh and idle-session janitor jobs. An
// empty schedule disables its job.
func NewScheduler(lc fx.Lifecycle, cfg *config.Config, registry schema.Registry, sessions session.Manager) (*cron.Cron, error) {
	c := newCron()
	if err := addJobs(c, cfg, registry, sessions); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Int("jobs", len(c.Entries())).Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})
	return c, nil
}

func addJobs(c *cron.Cron, cfg *config.Config, registry schema.Registry, sessions session.Manager) error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"schema_refresh", cfg.Schema.RefreshSchedule, refreshSchemaJob(registry)},
		{"session_janitor", cfg.Session.JanitorSchedule, evictIdleJob(sessions, cfg.Session.Retention)},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			log.Info().Str("job", job.name).Msg("No schedule configured, job disabled")
			continue
		}
		if _, err := c.AddFunc(job.schedule, job.run); err != nil {
			log.Error().Err(err).Str("job", job.name).Str("schedule", job.schedule).Msg("Failed to add cron job")
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		log.Info().Str("job", job.name).Str("schedule", job.schedule).Msg("Scheduled job")
	}
	return nil
}

func refreshSchemaJob(registry schema.Registry) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := registry.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Error during scheduled schema refresh")
		}
	}
}

func evictIdleJob(sessions session.Manager, retention time.Duration) func() {
	return func() {
		if retention <= 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := sessions.EvictIdle(ctx, retention)
		if err != nil {
			log.Error().Err(err).Int("evicted", n).Msg("Error during idle session eviction")
			return
		}
		if n > 0 {
			log.Info().Int("evicted", n).Dur("retention", retention).Msg("Evicted idle sessions")
		}
	}
}
