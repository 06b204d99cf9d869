package main

import (
	"time"

	"github.com/bgocumlu/juke/server/src/api"
	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/communication"
	"github.com/bgocumlu/juke/server/src/config"
	"github.com/bgocumlu/juke/server/src/download"
	"github.com/bgocumlu/juke/server/src/limiter"
	"github.com/bgocumlu/juke/server/src/logger"
	"github.com/bgocumlu/juke/server/src/media"
	"github.com/bgocumlu/juke/server/src/store"
)

var cli config.CLI

func init() {
	cli = config.ParseCommandArgs()
	logger.NewGlobalLogger(cli.Debug)
	config.PrintConfig(cli)
}

func main() {
	defer logger.Sync()

	blobs, err := store.NewSupabase(store.SupabaseConfig{
		BaseURL:   cli.SupabaseURL,
		APIKey:    cli.SupabaseKey,
		Bucket:    cli.SupabaseBucket,
		CDNDomain: cli.CloudflareDomain,
	})
	if err != nil {
		logger.Fatalw("Failed to initialize blob store", "error", err)
	}

	clk := clock.NewSystemClock()
	provider := media.NewYTDLP()
	downloads := download.NewQueue(blobs, provider, clk, cli.DownloadMaxWorkers)
	admission := limiter.NewSlidingWindow(clk, cli.DownloadRateLimit, time.Duration(cli.DownloadRateWindow)*time.Second)

	registry := communication.NewRegistry(clk)
	sessions := communication.NewSessionServer(registry, downloads, download.NewInflight(), clk)

	ticker := communication.NewTicker(registry, communication.DefaultTickInterval)
	ticker.Start()
	defer ticker.Stop()

	server := api.NewServer(registry, sessions, blobs, provider, downloads, admission, clk, api.Options{
		Host:  cli.Host,
		Port:  cli.Port,
		Cert:  cli.Cert,
		Key:   cli.Key,
		MaxMB: cli.DownloadMaxMB,
	})
	if err := server.Listen(); err != nil {
		logger.Fatalw("Shutting down server", "error", err)
	}
}
