package queue

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/sudarshan/search-indexer/internal/task"
)

// Kafka is a TaskStore backed by a single Kafka partition. Partition
// ordering gives FIFO for free, which is the only guarantee the
// autobatcher's contract requires from its upstream; this package does not
// attempt to generalize to multiple partitions, since that would require
// a total order the topic itself doesn't provide.
//
// Peek without consuming isn't a native Kafka operation, so Kafka buffers
// fetched-but-unacked messages in pending and serves Peek calls from
// there, topping up from the partition consumer as needed. Ack commits the
// consumer group offset and drops the acked prefix from pending.
type Kafka struct {
	client    sarama.Client
	producer  sarama.SyncProducer
	consumer  sarama.Consumer
	partition sarama.PartitionConsumer
	offsetMgr sarama.OffsetManager
	partOff   sarama.PartitionOffsetManager
	topic     string

	mu      sync.Mutex
	pending []pendingMsg
}

type pendingMsg struct {
	task   task.Task
	offset int64
}

// NewKafka connects to brokers and starts consuming topic's partition 0
// for group, resuming from the last committed offset.
func NewKafka(brokers []string, topic, group string) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Producer.Return.Successes = true

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: new client: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: new producer: %w", err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: new consumer: %w", err)
	}

	offsetMgr, err := sarama.NewOffsetManagerFromClient(group, client)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: new offset manager: %w", err)
	}

	partOff, err := offsetMgr.ManagePartition(topic, 0)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: manage partition: %w", err)
	}

	start, _ := partOff.NextOffset()
	if start < 0 {
		start = sarama.OffsetOldest
	}

	pc, err := consumer.ConsumePartition(topic, 0, start)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: consume partition: %w", err)
	}

	return &Kafka{
		client:    client,
		producer:  producer,
		consumer:  consumer,
		partition: pc,
		offsetMgr: offsetMgr,
		partOff:   partOff,
		topic:     topic,
	}, nil
}

// Enqueue publishes tasks to partition 0 of topic, matching Redis's and
// Memory's producer-side signature.
func (k *Kafka) Enqueue(_ context.Context, tasks ...task.Task) error {
	for _, t := range tasks {
		_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
			Topic:     k.topic,
			Partition: 0,
			Value:     sarama.ByteEncoder(encodeKafkaTask(t)),
		})
		if err != nil {
			return fmt.Errorf("queue/kafka: enqueue: %w", err)
		}
	}
	return nil
}

// Peek implements TaskStore by draining whatever is immediately available
// on the partition's message channel, up to max total pending tasks.
func (k *Kafka) Peek(ctx context.Context, max int) ([]task.Task, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for len(k.pending) < max || max <= 0 {
		select {
		case msg, ok := <-k.partition.Messages():
			if !ok {
				goto done
			}
			t, err := decodeKafkaTask(msg.Value)
			if err != nil {
				return nil, fmt.Errorf("queue/kafka: decode offset %d: %w", msg.Offset, err)
			}
			k.pending = append(k.pending, pendingMsg{task: t, offset: msg.Offset})
		case err := <-k.partition.Errors():
			return nil, fmt.Errorf("queue/kafka: consume: %w", err)
		case <-ctx.Done():
			goto done
		default:
			goto done
		}
	}
done:
	n := len(k.pending)
	if max > 0 && max < n {
		n = max
	}
	out := make([]task.Task, n)
	for i := 0; i < n; i++ {
		out[i] = k.pending[i].task
	}
	return out, nil
}

// Ack implements TaskStore by committing the offset of the last acked
// message and dropping the acked prefix from pending.
func (k *Kafka) Ack(_ context.Context, ids []task.ID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := len(ids)
	if n > len(k.pending) {
		n = len(k.pending)
	}
	if n == 0 {
		return nil
	}

	k.partOff.MarkOffset(k.pending[n-1].offset+1, "")
	k.pending = k.pending[n:]
	return nil
}

// Close tears down the producer, consumer, offset manager, and client.
func (k *Kafka) Close() error {
	k.partOff.Close()
	k.offsetMgr.Close()
	k.partition.Close()
	k.producer.Close()
	k.consumer.Close()
	return k.client.Close()
}

func encodeKafkaTask(t task.Task) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.ID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(t.Kind))
	return buf
}

func decodeKafkaTask(b []byte) (task.Task, error) {
	if len(b) != 16 {
		return task.Task{}, fmt.Errorf("expected 16 bytes, got %d", len(b))
	}
	id := binary.BigEndian.Uint64(b[0:8])
	kind := binary.BigEndian.Uint64(b[8:16])
	return task.Task{ID: task.ID(id), Kind: task.Kind(kind)}, nil
}
