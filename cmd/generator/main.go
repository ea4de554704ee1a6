package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"futsal/internal/config"
	"futsal/internal/database"
	"futsal/internal/logger"
	"futsal/internal/models"
	"futsal/internal/repository"
)

var (
	groundID = flag.Int64("ground", 0, "Generate slots only for specific ground ID (0 = all available grounds)")
	days     = flag.Int("days", 0, "Number of days ahead to generate (0 = SLOT_HORIZON_DAYS)")
	dryRun   = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

type SlotGenerator struct {
	grounds *repository.GroundRepository
	slots   *repository.SlotRepository
	cfg     config.GeneratorConfig
	now     func() time.Time
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting slot generator...")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	genCfg := cfg.Generator
	if *days > 0 {
		genCfg.HorizonDays = *days
	}

	generator := &SlotGenerator{
		grounds: repository.NewGroundRepository(db),
		slots:   repository.NewSlotRepository(db),
		cfg:     genCfg,
		now:     time.Now,
	}

	if err := generator.GenerateSlots(context.Background()); err != nil {
		slog.Error("Failed to generate slots", "error", err)
		os.Exit(1)
	}

	slog.Info("Slot generation completed successfully!")
}

func (g *SlotGenerator) GenerateSlots(ctx context.Context) error {
	grounds, err := g.targetGrounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to get grounds: %w", err)
	}

	if len(grounds) == 0 {
		slog.Info("No grounds found for slot generation")
		return nil
	}

	hours := startHours(g.cfg.FirstHour, g.cfg.LastHour)
	dates := horizon(g.now(), g.cfg.HorizonDays)

	slog.Info("Found grounds for slot generation",
		"count", len(grounds),
		"days", len(dates),
		"hours_per_day", len(hours))

	for _, ground := range grounds {
		if *dryRun {
			slog.Info("Dry run: would generate slots",
				"ground_id", ground.ID,
				"name", ground.Name,
				"max_slots", len(dates)*len(hours))
			continue
		}

		var created int64
		for _, date := range dates {
			n, err := g.slots.Generate(ctx, ground.ID, date, hours)
			if err != nil {
				slog.Error("Failed to generate slots for ground", "ground_id", ground.ID, "date", date.Format(models.DateLayout), "error", err)
				continue
			}
			created += n
		}
		slog.Info("Generated slots for ground", "ground_id", ground.ID, "name", ground.Name, "created", created)
	}

	return nil
}

func (g *SlotGenerator) targetGrounds(ctx context.Context) ([]models.Ground, error) {
	if *groundID > 0 {
		ground, err := g.grounds.GetByID(ctx, *groundID)
		if err != nil {
			return nil, err
		}
		if ground == nil || !ground.IsAvailable {
			return nil, nil
		}
		return []models.Ground{*ground}, nil
	}
	return g.grounds.ListAvailable(ctx)
}

// startHours returns every bookable start hour in [first, last]
func startHours(first, last int) []int64 {
	if first < 0 {
		first = 0
	}
	if last > 23 {
		last = 23
	}
	var hours []int64
	for h := first; h <= last; h++ {
		hours = append(hours, int64(h))
	}
	return hours
}

// horizon returns the calendar dates from today through today+days-1 in UTC
func horizon(now time.Time, days int) []time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, today.AddDate(0, 0, i))
	}
	return dates
}
