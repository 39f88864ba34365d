package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chardila/mybgg/lib/configutil"
	"github.com/chardila/mybgg/lib/httpcache"
	"github.com/chardila/mybgg/lib/ratelimit"
	"github.com/chardila/mybgg/lib/restyutil"
	"github.com/chardila/mybgg/lib/scrapers/bgg"
	"github.com/chardila/mybgg/lib/serviceutil"
	"github.com/chardila/mybgg/lib/sqliteutil"
	"github.com/chardila/mybgg/services/indexer"
	"github.com/chardila/mybgg/services/indexer/db"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

type Config struct {
	Username string `json:"username"`
	// usually `${BGG_TOKEN}` so the credential stays out of the file
	Token             string  `json:"token"`
	BaseUrl           string  `json:"base_url"`
	Output            string  `json:"output"`
	CacheDir          string  `json:"cache_dir"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	MaxAttempts       int     `json:"max_attempts"`
	SupportThreshold  int     `json:"support_threshold"`
	Compress          bool    `json:"compress"`
	PublishDir        string  `json:"publish_dir"`
}

var syncNoCache *bool
var syncDebugHttp *bool

func init() {
	syncNoCache = syncCmd.Flags().Bool("no-cache", false, "Skip the response cache and fetch everything live.")
	syncDebugHttp = syncCmd.Flags().Bool("debug-http", false, "Dump every request/response to .dev/resty.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [--no-cache] [--debug-http]",
	Short: "Fetches the collection from the catalog and rebuilds the local database.",
	Run: func(cmd *cobra.Command, args []string) {
		// a single exit point so deferred cleanup (the badger cache in
		// particular) always runs
		if err := runSync(cmd.Context()); err != nil {
			serviceutil.Fatal("sync failed", err)
		}
	},
}

func runSync(ctx context.Context) error {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.Output == "" {
		cfg.Output = "mybgg.db"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".cache/bgg"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	var cache *httpcache.Store
	if !*syncNoCache {
		cache, err = httpcache.Open(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to open response cache: %w", err)
		}
		defer cache.Close()
	}

	var instrument restyutil.InstrumentOutput
	if *syncDebugHttp {
		instrument = restyutil.NewFilesystemOutput(".dev/resty")
	}

	limiter := ratelimit.NewLimiter(cfg.RequestsPerSecond, nil)
	client, err := bgg.NewClient(cache, limiter, nil, bgg.ClientOptions{
		BaseUrl:          cfg.BaseUrl,
		Token:            cfg.Token,
		MaxAttempts:      cfg.MaxAttempts,
		InstrumentOutput: instrument,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize catalog client: %w", err)
	}

	out, err := sqliteutil.OpenDB(db.Schema, cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to open output db: %w", err)
	}
	defer out.Close()

	service := indexer.NewService(client, out, indexer.Options{
		Username:         cfg.Username,
		SupportThreshold: cfg.SupportThreshold,
	})

	t1 := time.Now()
	stats, err := service.Sync(ctx)
	if err != nil {
		return err
	}
	t2 := time.Now()

	slog.Info(
		"sync finished",
		"owned", stats.Owned,
		"skipped", stats.Skipped,
		"persisted", stats.Persisted,
		"seconds", t2.Sub(t1).Seconds(),
	)

	var uploader indexer.Uploader
	if cfg.PublishDir != "" {
		uploader = indexer.DirUploader{Dir: cfg.PublishDir}
	}
	if cfg.Compress || uploader != nil {
		// close before compressing so the file on disk is complete
		out.Close()
		err = indexer.Publish(ctx, cfg.Output, cfg.Compress, uploader)
		if err != nil {
			return fmt.Errorf("failed to publish artifact: %w", err)
		}
	}
	return nil
}
