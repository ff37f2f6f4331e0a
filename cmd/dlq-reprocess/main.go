// Команда dlq-reprocess вычитывает DLQ и повторно публикует исходные outbox-события.
// По умолчанию работает в dry-run: только печатает кандидатов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/app"
	"github.com/vladislavdragonenkov/foodorder/internal/clock"
	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	brokersEnv         = "FOODORDER_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	clientID    string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

type replayMessage struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// replaySender реализуется *kafka.Producer.
type replaySender interface {
	Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	Close() error
}

func main() {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	entry := logger.WithField("component", "dlq-reprocess")

	if err := app.LoadDotEnv(); err != nil {
		fail("%v", err)
	}
	cfg, err := readConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg, entry); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+brokersEnv+")")
	fs.StringVar(&cfg.clientID, "client-id", "dlq-reprocess", "Kafka client id")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "target topic for replay (default: route by aggregate type)")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	fs.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(brokersEnv)
	}

	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", brokersEnv)
	}
	if cfg.sourceTopic == "" {
		return config{}, errors.New("source-topic is required")
	}
	if cfg.targetTopic == cfg.sourceTopic {
		return config{}, errors.New("target-topic must differ from source-topic")
	}
	if cfg.limit <= 0 {
		return config{}, errors.New("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, errors.New("idle-timeout must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	logger.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	_, err = runReplay(ctx, cfg, client, consumer, producer, clock.NewSystem(), logger)
	return err
}

// replayStats считает просмотренные, переотправленные и пропущенные сообщения.
type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s replayStats) plus(other replayStats) replayStats {
	return replayStats{
		processed: s.processed + other.processed,
		replayed:  s.replayed + other.replayed,
		skipped:   s.skipped + other.skipped,
	}
}

func runReplay(
	ctx context.Context,
	cfg config,
	client offsetClient,
	consumer partitionConsumerSource,
	producer replaySender,
	clk clock.Clock,
	logger *log.Entry,
) (replayStats, error) {
	switch {
	case client == nil || consumer == nil:
		return replayStats{}, errors.New("kafka client and consumer are required")
	case cfg.execute && producer == nil:
		return replayStats{}, errors.New("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return replayStats{}, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		logger.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return replayStats{}, nil
	}
	slices.Sort(partitions)

	var total replayStats
	for _, partition := range partitions {
		budget := cfg.limit - total.processed
		if budget <= 0 {
			break
		}
		stats, err := processPartition(ctx, consumer, client, producer, cfg, partition, budget, clk, logger)
		total = total.plus(stats)
		if err != nil {
			return total, err
		}
	}

	logger.WithFields(log.Fields{
		"execute":   cfg.execute,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

// offsetWindow: полуинтервал [start, end) смещений, который нужно прочитать.
type offsetWindow struct {
	start int64
	end   int64
}

func (w offsetWindow) empty() bool { return w.end <= w.start }

// replayWindow ограничивает чтение тем, что лежало в партиции на момент старта.
// fromNewest сдвигает начало к хвосту, чтобы прочитать не больше limit последних сообщений.
func replayWindow(client offsetClient, topic string, partition int32, limit int, fromNewest bool) (offsetWindow, error) {
	oldest, err := client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return offsetWindow{}, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return offsetWindow{}, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	w := offsetWindow{start: oldest, end: newest}
	if fromNewest {
		w.start = max(newest-int64(limit), oldest)
	}
	return w, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer replaySender,
	cfg config,
	partition int32,
	limit int,
	clk clock.Clock,
	logger *log.Entry,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	window, err := replayWindow(client, cfg.sourceTopic, partition, limit, cfg.fromNewest)
	if err != nil || window.empty() {
		return stats, err
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, window.start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		var msg *sarama.ConsumerMessage
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
			continue
		case m, ok := <-pc.Messages():
			if !ok || m == nil || m.Offset >= window.end {
				return stats, nil
			}
			msg = m
		}
		idle.Reset(cfg.idleTimeout)

		stats.processed++
		replayed, err := replayOne(ctx, msg, cfg, producer, clk, logger)
		if err != nil {
			return stats, err
		}
		if replayed {
			stats.replayed++
		} else {
			stats.skipped++
		}

		if msg.Offset+1 >= window.end {
			return stats, nil
		}
	}
	return stats, nil
}

// replayOne публикует одно DLQ-сообщение или, в dry-run, только логирует его.
// Нераспознанные сообщения пропускаются без ошибки.
func replayOne(ctx context.Context, msg *sarama.ConsumerMessage, cfg config, producer replaySender, clk clock.Clock, logger *log.Entry) (bool, error) {
	entry := logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, err := extractReplayMessage(msg, cfg.sourceTopic, cfg.targetTopic, clk)
	if err != nil {
		entry.WithError(err).Warn("skip unsupported dlq message")
		return false, nil
	}

	if !cfg.execute {
		entry.WithFields(log.Fields{
			"target_topic": replay.topic,
			"key":          replay.key,
			"event_type":   replay.headers[kafka.HeaderEventType],
		}).Info("dlq replay candidate")
		return true, nil
	}
	if err := producer.Send(ctx, replay.topic, replay.key, replay.value, replay.headers); err != nil {
		return false, fmt.Errorf("publish replay message: %w", err)
	}
	return true, nil
}

// extractReplayMessage восстанавливает исходный envelope из DLQ-сообщения.
// Пустой targetTopic означает маршрутизацию по типу агрегата.
func extractReplayMessage(msg *sarama.ConsumerMessage, sourceTopic, targetTopic string, clk clock.Clock) (replayMessage, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return replayMessage{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return replayMessage{}, errors.New("dlq envelope has no payload")
	}

	var dead domain.DeadLetterPayload
	if err := json.Unmarshal(envelope.Payload, &dead); err != nil {
		return replayMessage{}, fmt.Errorf("decode dead letter payload: %w", err)
	}
	if len(dead.Payload) == 0 || string(dead.Payload) == "null" {
		return replayMessage{}, errors.New("dead letter does not contain original event payload")
	}

	original := kafka.Envelope{
		ID:            firstNonEmpty(dead.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(dead.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, envelope.EventType),
		Payload:       dead.Payload,
		CreatedAt:     envelope.CreatedAt,
		PublishedAt:   clk.Now().UTC(),
	}
	if original.ID == "" || original.EventType == "" {
		return replayMessage{}, errors.New("dead letter has no event id or type")
	}
	encoded, err := json.Marshal(original)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	topic := targetTopic
	if topic == "" {
		topic = kafka.TopicFor(original.AggregateType)
	}

	return replayMessage{
		topic: topic,
		key:   firstNonEmpty(original.AggregateID, original.ID),
		value: encoded,
		headers: map[string]string{
			kafka.HeaderEventType:     original.EventType,
			kafka.HeaderOutboxID:      original.ID,
			kafka.HeaderAggregateType: original.AggregateType,
			kafka.HeaderReplayedFrom:  sourceTopic,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
