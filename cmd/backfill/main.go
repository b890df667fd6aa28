// Command backfill seeds the task queue and metadata store from a
// newline-delimited JSON document stream on stdin, one
// {"index":...,"doc_id":...,"payload":{...}} object per line. It is the
// one-time migration step run before the scheduler starts draining an
// index for the first time.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sudarshan/search-indexer/internal/backfill"
	"github.com/sudarshan/search-indexer/internal/checkpoint"
	"github.com/sudarshan/search-indexer/internal/cli"
	"github.com/sudarshan/search-indexer/internal/config"
	"github.com/sudarshan/search-indexer/internal/mongodb"
	"github.com/sudarshan/search-indexer/internal/queue"
)

func main() {
	workers := flag.Int("workers", 4, "Number of concurrent seeding workers")
	quiet := flag.Bool("quiet", false, "Suppress CLI progress output")
	total := flag.Int64("total", 0, "Expected document count, if known, for a progress bar (0 = unsized stream)")
	flag.Parse()

	cfg := config.Load()

	store, closeStore, err := buildQueue(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill: build queue: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	mongoClient, err := mongodb.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill: connect mongodb: %v\n", err)
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	cp, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill: open checkpoint: %v\n", err)
		os.Exit(1)
	}
	if _, err := cp.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: load checkpoint: %v\n", err)
		os.Exit(1)
	}

	b := backfill.New(mongoClient, store, cli.New(*quiet), *workers, cp.LastAckedID()+1, *total)

	docs := make(chan backfill.Source, *workers*4)
	go func() {
		defer close(docs)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var src backfill.Source
			if err := json.Unmarshal(scanner.Bytes(), &src); err != nil {
				fmt.Fprintf(os.Stderr, "backfill: skip malformed line: %v\n", err)
				continue
			}
			docs <- src
		}
	}()

	if err := b.Run(context.Background(), docs); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func buildQueue(cfg *config.Config) (backfill.Enqueuer, func(), error) {
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
