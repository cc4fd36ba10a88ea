package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/google/uuid"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewSaramaConfig returns the async producer settings used for audit events.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// KafkaPublisher hands events to a sarama async producer. When the producer
// input is full the event is dropped and logged.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      logging.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewKafkaPublisher dials the brokers.
func NewKafkaPublisher(cfg KafkaConfig, log logging.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, log), nil
}

func NewKafkaPublisherWithProducer(producer sarama.AsyncProducer, topic string, log logging.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.With("module", "audit", "sink", "kafka"),
	}

	p.wg.Add(1)
	go p.handleErrors()

	return p
}

func (p *KafkaPublisher) handleErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		p.log.Error(context.Background(), "audit event not delivered",
			"error", perr.Err, "topic", perr.Msg.Topic)
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	msg, err := p.message(e)
	if err != nil {
		p.log.Error(ctx, "audit event encode failed", "error", err, "event_type", e.Type)
		return
	}

	select {
	case p.producer.Input() <- msg:
	default:
		p.log.Warn(ctx, "audit producer busy, event dropped", "event_type", e.Type, "event_id", e.ID)
	}
}

func (p *KafkaPublisher) message(e Event) (*sarama.ProducerMessage, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	e.OccurredAt = e.OccurredAt.UTC()

	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
		},
	}
	if e.UserID != "" {
		msg.Key = sarama.StringEncoder(e.UserID)
	}
	return msg, nil
}

// Close flushes pending messages and stops the error handler.
func (p *KafkaPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := p.producer.Close(); cerr != nil {
			err = fmt.Errorf("close kafka producer: %w", cerr)
		}
		p.wg.Wait()
	})
	return err
}
