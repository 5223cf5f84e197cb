package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jengzang/gpx-tracks-etl/internal/config"
	"github.com/jengzang/gpx-tracks-etl/internal/database"
	"github.com/jengzang/gpx-tracks-etl/internal/kinematics"
	"github.com/jengzang/gpx-tracks-etl/internal/notify"
	"github.com/jengzang/gpx-tracks-etl/internal/pipeline"
	"github.com/jengzang/gpx-tracks-etl/internal/repository"
	"github.com/jengzang/gpx-tracks-etl/internal/service"
)

// trackRepo is implemented by both the SQLite and the Postgres repositories
type trackRepo interface {
	pipeline.Sink
	service.TrackStore
}

type backend struct {
	repo     trackRepo
	notifier *notify.RedisNotifier
	closers  []func()
}

// openBackend connects the configured storage and, when REDIS_ADDR is set,
// the ingest notifier.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	switch cfg.DBDriver {
	case "postgres":
		pool, err := database.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		b.repo = repository.NewPGTrackRepository(pool, cfg.CreateTable)
		b.closers = append(b.closers, pool.Close)
	default:
		db, err := database.Open(database.Config{Path: cfg.DBPath})
		if err != nil {
			return nil, err
		}
		b.repo = repository.NewTrackRepository(db, cfg.CreateTable)
		b.closers = append(b.closers, func() { db.Close() })
	}

	if client := notify.Connect(notify.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Channel:  cfg.RedisChannel,
	}); client != nil {
		b.notifier = notify.NewRedisNotifier(client, cfg.RedisChannel)
		b.closers = append(b.closers, func() { client.Close() })
		log.Printf("[gpxetl] publishing ingest reports to redis %s channel %s", cfg.RedisAddr, cfg.RedisChannel)
	}

	return b, nil
}

// pipeline builds an ingest pipeline. segments overrides the configured
// segment policy when non-empty.
func (b *backend) pipeline(cfg *config.Config, segments string) (*pipeline.Pipeline, error) {
	if segments == "" {
		segments = cfg.SegmentPolicy
	}
	policy, err := kinematics.ParseSegmentPolicy(segments)
	if err != nil {
		return nil, fmt.Errorf("invalid segment policy: %w", err)
	}

	transformer := kinematics.NewTransformer(kinematics.Options{Segments: policy})
	if b.notifier == nil {
		return pipeline.New(b.repo, transformer, nil), nil
	}
	return pipeline.New(b.repo, transformer, b.notifier), nil
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
