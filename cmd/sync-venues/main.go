package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"futsal/internal/config"
	"futsal/internal/database"
	"futsal/internal/logger"
	"futsal/internal/models"
	"futsal/internal/repository"
	"futsal/internal/search"
)

func main() {
	var workers int
	flag.IntVar(&workers, "workers", 4, "Number of concurrent indexing workers")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting venue index synchronization", "index", cfg.Elasticsearch.Index)

	if !cfg.Elasticsearch.Enabled() {
		log.Fatal("ELASTICSEARCH_URL is not set")
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	index, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Failed to connect to Elasticsearch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	repos := repository.NewRepositories(db)
	if err := syncVenues(ctx, repos.Venues, repos.Grounds, index, workers); err != nil {
		log.Fatalf("Venue synchronization failed: %v", err)
	}

	slog.Info("Venue synchronization completed successfully")
}

type venueSource interface {
	ListActive(ctx context.Context) ([]models.Venue, error)
}

type groundSource interface {
	ListByVenue(ctx context.Context, venueID int64) ([]models.Ground, error)
}

type venueIndexer interface {
	IndexVenue(ctx context.Context, doc search.VenueDocument) error
	Refresh(ctx context.Context) error
}

func syncVenues(ctx context.Context, venues venueSource, grounds groundSource, index venueIndexer, workers int) error {
	start := time.Now()

	list, err := venues.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list venues: %w", err)
	}
	slog.Info("Loaded active venues", "count", len(list))

	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, v := range list {
		v := v
		g.Go(func() error {
			gs, err := grounds.ListByVenue(gctx, v.ID)
			if err != nil {
				return fmt.Errorf("failed to list grounds for venue %d: %w", v.ID, err)
			}
			return index.IndexVenue(gctx, toDocument(v, gs))
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := index.Refresh(ctx); err != nil {
		return err
	}

	slog.Info("Venue synchronization finished",
		"venues_indexed", len(list),
		"duration", time.Since(start).String())
	return nil
}

func toDocument(v models.Venue, grounds []models.Ground) search.VenueDocument {
	open := 0
	for _, g := range grounds {
		if g.IsAvailable {
			open++
		}
	}
	return search.VenueDocument{
		ID:          v.ID,
		Name:        v.Name,
		Location:    v.Location,
		Description: v.Description,
		GroundCount: open,
	}
}
