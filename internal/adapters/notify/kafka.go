package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"audiencepulse/internal/services/pulse/domain"
)

// KafkaConfig selects the brokers and topic
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// Kafka produces one message per notification keyed by job id
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka dials the brokers with a synchronous producer
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.ClientID = "audiencepulse"
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 0
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
		sc.Net.DialTimeout = cfg.Timeout
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return NewKafkaProducer(p, cfg.Topic), nil
}

// NewKafkaProducer wraps an existing producer
func NewKafkaProducer(p sarama.SyncProducer, topic string) *Kafka {
	if topic == "" {
		topic = "pulse.jobs"
	}
	return &Kafka{producer: p, topic: topic}
}

// Notify sends n and waits for the broker ack
func (k *Kafka) Notify(_ context.Context, n domain.JobNotification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(n.JobID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("status"), Value: []byte(n.Status)},
		},
	})
	return err
}

// Close flushes and closes the producer
func (k *Kafka) Close() error { return k.producer.Close() }
