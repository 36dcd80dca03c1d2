package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
	"github.com/bcgov/sbc-auth-sub003/pkg/permissions"
)

var log = logrus.New()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "seed":
		err = runSeed(os.Args[2:])
	case "rebuild":
		err = runRebuild(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: auth-admin <command> [flags]

Commands:
  migrate   apply pending schema migrations
  seed      apply a YAML permission seed file and publish a rebuild
  rebuild   publish a cache rebuild notification to all replicas
`)
}

func openDB(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbURL := fs.String("db-url", os.Getenv("AUTH_POSTGRES_URL"), "PostgreSQL connection URL")
	fs.Parse(args)

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	if err := permissions.RunMigrations(context.Background(), db, logger); err != nil {
		return err
	}

	log.Info("migrations applied")
	return nil
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbURL := fs.String("db-url", os.Getenv("AUTH_POSTGRES_URL"), "PostgreSQL connection URL")
	seedPath := fs.String("file", os.Getenv("AUTH_PERMISSIONS_SEED_PATH"), "YAML permission seed file")
	redisAddr := fs.String("redis-addr", os.Getenv("AUTH_REDIS_ADDR"), "Redis address for the rebuild notification (optional)")
	fs.Parse(args)

	if *seedPath == "" {
		return fmt.Errorf("seed file is required (-file or AUTH_PERMISSIONS_SEED_PATH)")
	}

	seed, err := permissions.LoadSeed(*seedPath)
	if err != nil {
		return err
	}

	db, err := openDB(*dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := permissions.ApplySeed(ctx, db, seed); err != nil {
		return err
	}
	log.WithField("rules", len(seed.Rules)).Info("permission catalog seeded")

	if *redisAddr != "" {
		if err := publishRebuild(ctx, *redisAddr); err != nil {
			// Seeding succeeded; replicas pick up the catalog on their
			// next scheduled rebuild.
			log.WithError(err).Warn("failed to publish rebuild notification")
			return nil
		}
		log.Info("rebuild notification published")
	}

	return nil
}

func runRebuild(args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	redisAddr := fs.String("redis-addr", os.Getenv("AUTH_REDIS_ADDR"), "Redis address")
	fs.Parse(args)

	if *redisAddr == "" {
		return fmt.Errorf("redis address is required (-redis-addr or AUTH_REDIS_ADDR)")
	}

	if err := publishRebuild(context.Background(), *redisAddr); err != nil {
		return err
	}

	log.Info("rebuild notification published")
	return nil
}

func publishRebuild(ctx context.Context, redisAddr string) error {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("AUTH_REDIS_PASSWORD"),
	})
	defer client.Close()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	return permissions.NewNotifier(client, logger).PublishRebuild(ctx)
}
