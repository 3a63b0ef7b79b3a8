package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/infra/credentials"
)

func main() {
	var keyFlag string
	flag.StringVar(&keyFlag, "key", "", "OpenRouter API key (falls back to OPENROUTER_API_KEY)")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "OpenRouter API key is required via -key or OPENROUTER_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Str("provider", credentials.ProviderOpenRouter).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	props := map[string]any{"set_at": time.Now().UTC().Format(time.RFC3339)}
	if err := store.SetOpenRouterAPIKey(ctxExec, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist openrouter api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("OpenRouter API key stored successfully")
}
