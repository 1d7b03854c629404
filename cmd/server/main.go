// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/auth"
	"github.com/sixelasacul/friend-blind-test/internal/catalog"
	"github.com/sixelasacul/friend-blind-test/internal/config"
	"github.com/sixelasacul/friend-blind-test/internal/database"
	"github.com/sixelasacul/friend-blind-test/internal/game"
	"github.com/sixelasacul/friend-blind-test/internal/handlers"
	"github.com/sixelasacul/friend-blind-test/internal/middleware"
	"github.com/sixelasacul/friend-blind-test/internal/scheduler"
)

func main() {
	auth.Init()
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := database.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	rdb, err := scheduler.Connect(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	sched := scheduler.New(rdb, logger)

	gameCfg := game.DefaultConfig()
	lastFm := catalog.NewLastFmClient(cfg.LastFmAPIKey, nil)
	spotify := catalog.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, nil)
	generator := catalog.NewGenerator(lastFm, spotify, nil, logger, gameCfg.TracksPerGame)

	engine := game.NewEngine(store, sched, generator, gameCfg, logger)
	sched.SetHandler(engine.HandleTransition)
	go sched.Run(ctx)

	srv := handlers.NewServer(engine, logger)
	handler := middleware.LogMiddleware(logger)(srv.Routes())

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
