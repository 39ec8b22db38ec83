package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/bitcoin"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/cache"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/graph"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/importer"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/metrics"
	"github.com/Mohamed7727/bitcoin-analysis-stack-optimized/internal/state"
)

type config struct {
	Network          string        `long:"network" env:"BTC_GRAPH_NETWORK" description:"chain network name" default:"mainnet" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"signet"`
	RPCURL           string        `long:"rpc-url" env:"BTC_GRAPH_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser          string        `long:"rpc-user" env:"BTC_GRAPH_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword      string        `long:"rpc-password" env:"BTC_GRAPH_RPC_PASSWORD" description:"Bitcoin RPC password"`
	Neo4jURI         string        `long:"neo4j-uri" env:"BTC_GRAPH_NEO4J_URI" description:"Neo4j bolt URI" default:"bolt://127.0.0.1:7687"`
	Neo4jUser        string        `long:"neo4j-user" env:"BTC_GRAPH_NEO4J_USER" description:"Neo4j username" default:"neo4j"`
	Neo4jPassword    string        `long:"neo4j-password" env:"BTC_GRAPH_NEO4J_PASSWORD" description:"Neo4j password"`
	CacheAddr        string        `long:"cache-addr" env:"BTC_GRAPH_CACHE_ADDR" description:"Redis address for the block cache, empty disables caching"`
	CachePassword    string        `long:"cache-password" env:"BTC_GRAPH_CACHE_PASSWORD" description:"Redis password"`
	CacheDB          int           `long:"cache-db" env:"BTC_GRAPH_CACHE_DB" description:"Redis database number"`
	CacheTTL         time.Duration `long:"cache-ttl" env:"BTC_GRAPH_CACHE_TTL" description:"block cache entry TTL" default:"1h"`
	StatePath        string        `long:"state-path" env:"BTC_GRAPH_STATE_PATH" description:"checkpoint file path" default:"importer_state.json"`
	StartBlock       uint64        `long:"start-block" env:"BTC_GRAPH_START_BLOCK" description:"height to start from when no checkpoint exists"`
	BatchSize        uint64        `long:"batch-size" env:"BTC_GRAPH_BATCH_SIZE" description:"blocks per catch-up batch" default:"100"`
	CheckpointStride uint64        `long:"checkpoint-stride" env:"BTC_GRAPH_CHECKPOINT_STRIDE" description:"persist checkpoint every N imported blocks" default:"10"`
	PollInterval     time.Duration `long:"poll-interval" env:"BTC_GRAPH_POLL_INTERVAL" description:"how often to poll for new blocks when caught up" default:"1m"`
	FetchWorkers     int           `long:"fetch-workers" env:"BTC_GRAPH_FETCH_WORKERS" description:"concurrent block fetchers" default:"1"`
	Mode             string        `long:"mode" env:"BTC_GRAPH_MODE" description:"run mode" default:"continuous" choice:"continuous" choice:"once"`
	WriteMode        string        `long:"write-mode" env:"BTC_GRAPH_WRITE_MODE" description:"graph write granularity" default:"single" choice:"single" choice:"batch"`
	RetrySkipped     bool          `long:"retry-skipped" env:"BTC_GRAPH_RETRY_SKIPPED" description:"retry skipped blocks once at the end of each batch"`
	ZMQAddr          string        `long:"zmq-addr" env:"BTC_GRAPH_ZMQ_ADDR" description:"node zmq endpoint for hashblock notifications, empty disables"`
	MetricsAddr      string        `long:"metrics-addr" env:"BTC_GRAPH_METRICS_ADDR" description:"address for metrics server" default:":2112"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("block graph importer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()
	rpc := bitcoin.NewObservedClient(rpcClient, metrics.NewRPCClient(cfg.Network))

	source, err := bitcoin.NewSource(rpc, cfg.Network)
	if err != nil {
		return fmt.Errorf("init chain source: %w", err)
	}

	repo, err := graph.NewRepository(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, metrics.NewGraphRepository())
	if err != nil {
		return fmt.Errorf("init graph repository: %w", err)
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Warn("close graph repository", zap.Error(err))
		}
	}()

	var blockCache importer.BlockCache
	if cfg.CacheAddr != "" {
		c, err := cache.New(ctx, cfg.CacheAddr, cfg.CachePassword, cfg.CacheDB, cfg.CacheTTL, logger.Named("cache"), metrics.NewBlockCache())
		if err != nil {
			return fmt.Errorf("init block cache: %w", err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("close block cache", zap.Error(err))
			}
		}()
		blockCache = c
	} else {
		logger.Info("block cache disabled")
	}

	checkpoints := state.NewStore(cfg.StatePath, cfg.StartBlock)

	svc, err := importer.New(
		source,
		blockCache,
		checkpoints,
		repo,
		metrics.NewImporter(cfg.Network),
		importer.Options{
			BatchSize:        cfg.BatchSize,
			CheckpointStride: cfg.CheckpointStride,
			PollInterval:     cfg.PollInterval,
			FetchWorkers:     cfg.FetchWorkers,
			Mode:             importer.Mode(cfg.Mode),
			WriteMode:        importer.WriteMode(cfg.WriteMode),
			RetrySkipped:     cfg.RetrySkipped,
		},
		logger,
	)
	if err != nil {
		return err
	}

	wake, err := startBlockSignal(ctx, cfg.ZMQAddr, logger)
	if err != nil {
		return fmt.Errorf("init block signal: %w", err)
	}
	if wake != nil {
		svc.SetWakeSignal(wake)
	}

	return svc.Run(ctx)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	cfg := &rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	return rpcclient.New(cfg, nil)
}
