package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/infra/config"
)

const errBufferSize = 256

// Producer owns an async sarama producer and drains its error channel so
// publish failures surface in logs instead of blocking senders.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	errChan  chan error
	done     chan struct{}
}

func saramaConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Flush.Messages = 100
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true
	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

// NewProducer connects to the configured brokers and starts the error
// drain goroutine.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		errChan:  make(chan error, errBufferSize),
		done:     make(chan struct{}),
	}
	go p.drainErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("async", cfg.Async),
	)

	return p, nil
}

func (p *Producer) drainErrors() {
	for {
		select {
		case perr := <-p.producer.Errors():
			if perr == nil {
				continue
			}
			p.logger.Error("kafka producer error",
				zap.Error(perr.Err),
				zap.String("topic", perr.Msg.Topic),
				zap.Int32("partition", perr.Msg.Partition),
				zap.Int64("offset", perr.Msg.Offset),
			)
			select {
			case p.errChan <- perr.Err:
			default:
				p.logger.Warn("error channel full, dropping error")
			}
		case <-p.done:
			return
		}
	}
}

// Producer exposes the underlying sarama producer for the event publisher.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Errors exposes drained producer errors for external monitoring.
func (p *Producer) Errors() <-chan error {
	return p.errChan
}

// Close stops the drain goroutine and flushes pending messages.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	close(p.done)

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}

	close(p.errChan)
	return nil
}

// TopicName prepends the configured topic prefix unless it is already there.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
