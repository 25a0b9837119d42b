// Command moodctl is a command-line mood journal client.
//
// Usage:
//
//	moodctl [--config path] <command> [args]
//
// Commands:
//
//	login <email> <password>
//	logout
//	whoami
//	entries list [--limit n] [--offset n] [--deleted]
//	entries get <id>
//	entries create <feeling> [note]
//	entries update <id> <feeling> [note]
//	entries delete <id>
//	entries restore <id>
//	admin users <username> <password>
//	admin tokens <username> <password>
//
// Credentials persist between runs in the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	moodjournal "github.com/MrEthical07/moodjournal"
	"github.com/MrEthical07/moodjournal/internal/logger"
	"github.com/MrEthical07/moodjournal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	fs := flag.NewFlagSet("moodctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal("open credential store", zap.Error(err))
	}
	defer closeStore()

	client, err := newClient(cfg, store, log)
	if err != nil {
		log.Fatal("build client", zap.Error(err))
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, fs.Args(), os.Stdout); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, ue.Error())
			fs.Usage()
			os.Exit(2)
		}
		log.Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, moodjournal.UserMessage(err))
		os.Exit(1)
	}
}

func newClient(cfg *Config, store session.TokenStore, log *zap.Logger) (*moodjournal.Client, error) {
	mc := moodjournal.DefaultConfig()
	mc.BaseURL = cfg.BaseURL
	mc.Transport.Timeout = cfg.Timeout
	if cfg.Mode == "cookie" {
		mc.Credentials.Mode = moodjournal.ModeCookie
	}
	return moodjournal.New().
		WithConfig(mc).
		WithTokenStore(store).
		WithLogger(log).
		Build()
}

func openStore(cfg *Config) (session.TokenStore, func(), error) {
	switch cfg.Store.Kind {
	case "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.Store.RedisAddr},
		})
		store := session.NewRedisStore(rdb, cfg.Store.RedisPrefix, cfg.Store.Profile, cfg.Store.TTL)
		return store, func() { _ = rdb.Close() }, nil
	default:
		path, err := cfg.credentialsPath()
		if err != nil {
			return nil, nil, err
		}
		return session.NewFileStore(path), func() {}, nil
	}
}
