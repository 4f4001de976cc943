package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/fabric"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/room"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/store"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"cardroom.hcl" help:"Path to HCL configuration file"`
	Port     int    `short:"p" long:"port" help:"Listen port (overrides config)"`
	Broker   string `short:"b" long:"broker" help:"Redis broker URL (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}
	if CLI.Port != 0 {
		cfg.Server.ListenPort = CLI.Port
	}
	if CLI.Broker != "" {
		cfg.Server.BrokerURL = CLI.Broker
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	roomStore, roomFabric := buildInfrastructure(cfg, logger)
	defer func() { _ = roomFabric.Close() }()

	roomCfg := room.Config{
		Rules: game.Rules{
			SmallBlind:    cfg.Game.SmallBlind,
			BigBlind:      cfg.Game.BigBlind,
			StartingTiles: cfg.Game.StartingTiles,
		},
		TurnTimeout: cfg.TurnTimeout(),
		RevealDelay: cfg.RevealDelay(),
	}
	clock := quartz.NewReal()
	rooms := room.NewManager(roomCfg, clock, roomStore, roomFabric, logger, nil)
	gateway := server.NewServer(cfg.ListenAddr(), rooms, clock, cfg.DisconnectGrace(), logger)

	logger.Info("Starting cardroom server",
		"addr", cfg.ListenAddr(),
		"blinds", fmt.Sprintf("%d/%d", cfg.Game.SmallBlind, cfg.Game.BigBlind),
		"startingTiles", cfg.Game.StartingTiles)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(gateway.Start)
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		gateway.Stop()
		rooms.StopAll()
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		kctx.Exit(1)
	}
}

// buildInfrastructure picks the store and fabric. With no broker, or an
// unreachable one, the node runs standalone on memory; the game stays
// available over strict cross-node consistency.
func buildInfrastructure(cfg *config.Config, logger *log.Logger) (store.Store, fabric.Fabric) {
	if cfg.Server.BrokerURL == "" {
		return store.NewMemory(), fabric.NewLocal()
	}

	opts, err := redis.ParseURL(cfg.Server.BrokerURL)
	if err != nil {
		logger.Warn("Invalid broker URL, falling back to single-node mode", "error", err)
		return store.NewMemory(), fabric.NewLocal()
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Broker unreachable, falling back to single-node mode", "error", err)
		_ = client.Close()
		return store.NewMemory(), fabric.NewLocal()
	}

	logger.Info("Connected to broker", "url", cfg.Server.BrokerURL)
	return store.NewRedis(client), fabric.NewBroker(client, logger)
}
