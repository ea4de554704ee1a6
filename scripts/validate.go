package main

import (
	"context"
	"flag"
	"os"
	"time"

	"futsal/internal/logger"
	"futsal/internal/validation"
)

func main() {
	var (
		baseURL  string
		username string
		password string
		groundID int64
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.StringVar(&username, "user", os.Getenv("SMOKE_USER"), "Basic auth email")
	flag.StringVar(&password, "password", os.Getenv("SMOKE_PASSWORD"), "Basic auth password")
	flag.Int64Var(&groundID, "ground", 1, "Ground used for slot listing checks")
	flag.Parse()

	logger.Init("INFO", "text")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	validator := validation.NewSmokeValidator(baseURL, username, password, groundID)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("Валидация не пройдена", "error", err)
	}
}
