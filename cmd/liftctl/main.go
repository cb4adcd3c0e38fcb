package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/davidbz/liftplan/internal/apiclient"
	"github.com/davidbz/liftplan/internal/cli"
	"github.com/davidbz/liftplan/internal/clientconfig"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/localcache/memory"
	"github.com/davidbz/liftplan/internal/localcache/redis"
	"github.com/davidbz/liftplan/internal/localcache/sqlite"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/timer"
	"github.com/davidbz/liftplan/internal/workout"
)

const usage = `usage:
  liftctl [-config file] days <plan-id>
  liftctl [-config file] run <session-id>
  liftctl [-config file] start <plan-id> <day> [YYYY-MM-DD]
`

// finalSaveTimeout bounds the save made when the shell is interrupted.
const finalSaveTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to liftctl.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if _, err := observability.InitDevelopmentLogger(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cfg, err := clientconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *clientconfig.Config, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	api, err := apiclient.New(cfg.Server.URL, cfg.Server.APIKey, cfg.Server.Timeout)
	if err != nil {
		return err
	}

	if args[0] == "days" && len(args) == 2 {
		return printDays(ctx, api, args[1])
	}

	var record *domain.SessionRecord
	switch {
	case args[0] == "run" && len(args) == 2:
		record, err = api.FetchSession(ctx, args[1])
	case args[0] == "start" && (len(args) == 3 || len(args) == 4):
		date := ""
		if len(args) == 4 {
			date = args[3]
		}
		record, err = api.CreateSession(ctx, args[1], args[2], date)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}

	cache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	return runSession(ctx, cfg, api, cache, record)
}

func printDays(ctx context.Context, api *apiclient.Client, planID string) error {
	plan, err := api.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	fmt.Println(plan.Name)
	for _, name := range cli.DayNames(plan.Structure) {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runSession(
	ctx context.Context,
	cfg *clientconfig.Config,
	api *apiclient.Client,
	cache workout.LocalCache,
	record *domain.SessionRecord,
) error {
	ctx = observability.WithSessionID(ctx, record.ID)
	term := cli.NewTerminal(os.Stdin, os.Stdout)

	rest := timer.New(
		timer.WithCue(timer.FallbackCue{
			Primary:  timer.SoundCue{Player: cfg.Sound.Player, Path: cfg.Sound.Path},
			Fallback: timer.BellCue{Out: os.Stdout},
		}),
		timer.WithOnChange(cli.RestAnnouncer(term)),
	)
	go rest.Run(ctx)

	engine, err := workout.New(ctx, record, workout.Deps{
		API:      api,
		Cache:    cache,
		Notifier: cli.Broadcast{term, observability.NewEventLog(ctx)},
		Host:     term,
	}, workout.WithAutosaveDelay(cfg.Session.AutosaveDelay), workout.WithRestTimer(rest))
	if err != nil {
		return err
	}
	if engine.Finished() {
		return fmt.Errorf("session %s is already completed", record.ID)
	}

	shell := cli.NewShell(engine, rest, term, cfg.Session.DefaultRestSeconds)
	done := make(chan error, 1)
	go func() {
		done <- shell.Run(ctx)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
		defer cancel()
		return shell.Leave(saveCtx)
	}
}

func openCache(ctx context.Context, cfg clientconfig.CacheConfig) (workout.LocalCache, func(), error) {
	switch cfg.Backend {
	case clientconfig.CacheRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redis.New(client, "liftctl:", cfg.RedisTTL), func() { _ = client.Close() }, nil
	case clientconfig.CacheMemory:
		return memory.New(), func() {}, nil
	default:
		cache, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	}
}
