// Command indexer runs the search-indexer scheduler: it peeks the
// configured task queue, plans a batch with the autobatcher, executes it
// against OpenSearch/MongoDB, and repeats until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sudarshan/search-indexer/internal/checkpoint"
	"github.com/sudarshan/search-indexer/internal/cli"
	"github.com/sudarshan/search-indexer/internal/config"
	"github.com/sudarshan/search-indexer/internal/executor"
	"github.com/sudarshan/search-indexer/internal/metrics"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/opensearch"
	"github.com/sudarshan/search-indexer/internal/queue"
	"github.com/sudarshan/search-indexer/internal/scheduler"
)

func main() {
	quiet := flag.Bool("quiet", false, "Suppress CLI progress output")
	prefixSize := flag.Int("prefix-size", 0, "Max tasks per Peek (0 = use config default)")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve /metrics on (empty = use config default)")
	flag.Parse()

	cfg := config.Load()
	if *prefixSize > 0 {
		cfg.PrefixSize = *prefixSize
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reporter := cli.New(*quiet)
	reporter.StartPhase("search-indexer")
	reporter.Info(fmt.Sprintf("queue backend: %s", cfg.QueueBackend))
	reporter.Info(fmt.Sprintf("prefix size: %d", cfg.PrefixSize))

	const totalSteps = 4

	reporter.Step(1, totalSteps, "connecting task queue")
	store, closeStore, err := buildQueue(cfg)
	if err != nil {
		log.Fatal("build queue", zap.Error(err))
	}
	defer closeStore()
	reporter.Done()

	reporter.Step(2, totalSteps, "connecting opensearch")
	osClient, err := opensearch.NewClient(cfg)
	if err != nil {
		log.Fatal("connect opensearch", zap.Error(err))
	}
	reporter.Done()
	if exists, entries, size, err := osClient.SettingsCacheStats(); err == nil {
		reporter.CacheStatus(exists, entries, size, map[string]string{"dir": cfg.SettingsCacheDir})
	}

	reporter.Step(3, totalSteps, "connecting mongodb")
	mongoClient, err := mongodb.NewClient(cfg)
	if err != nil {
		log.Fatal("connect mongodb", zap.Error(err))
	}
	defer mongoClient.Close(context.Background())
	reporter.Done()

	reporter.Step(4, totalSteps, "loading checkpoint")
	cp, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		log.Fatal("open checkpoint", zap.Error(err))
	}
	if _, err := cp.Load(); err != nil {
		log.Fatal("load checkpoint", zap.Error(err))
	}
	reporter.Running(fmt.Sprintf("resuming from task %d", cp.LastAckedID()))

	m := metrics.Init("search_indexer")
	exec := executor.New(osClient, mongoClient)
	sched := scheduler.New(store, exec, cp, m, log, cfg.PrefixSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	go serveMetrics(cfg.MetricsAddr, log)

	reporter.EndPhase()
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("scheduler exited", zap.Error(err))
	}
	reporter.Success("scheduler stopped cleanly")
	reporter.Summary("search-indexer", map[string]string{
		"last_acked_id": fmt.Sprintf("%d", cp.LastAckedID()),
	})
}

func buildQueue(cfg *config.Config) (queue.TaskStore, func(), error) {
	switch cfg.QueueBackend {
	case config.QueueBackendMemory:
		return queue.NewMemory(), func() {}, nil
	case config.QueueBackendRedis:
		r := queue.NewRedis(cfg.RedisAddr, cfg.RedisListKey)
		return r, func() { r.Close() }, nil
	case config.QueueBackendKafka:
		k, err := queue.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		if err != nil {
			return nil, func() {}, err
		}
		return k, func() { k.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
