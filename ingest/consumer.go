package ingest

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/observability"
)

// feedRecord is the wire shape of the upstream feed. Observation and
// weather records share one topic, discriminated by kind.
type feedRecord struct {
	Kind        string                 `json:"kind"` // "observation" or "weather"
	Observation *hazard.Observation    `json:"observation,omitempty"`
	Weather     *hazard.WeatherContext `json:"weather,omitempty"`
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads the hazard feed from Kafka into the buffer. Records
// are parsed into the strongly-typed models at this boundary; nothing
// downstream inspects raw payloads.
type Consumer struct {
	reader  *kafkago.Reader
	buffer  *Buffer
	metrics *observability.Metrics
}

func NewConsumer(cfg ConsumerConfig, buffer *Buffer, metrics *observability.Metrics) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	return &Consumer{reader: reader, buffer: buffer, metrics: metrics}
}

// Run consumes until the context is cancelled. Fetch failures back
// off and retry; the scorer keeps serving the last good snapshot in
// the meantime.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second
	log.Infof("consuming hazard feed from %s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("fetch failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = 200 * time.Millisecond

		c.handle(msg.Value)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Errorf("commit failed: %v", err)
		}
	}
}

func (c *Consumer) handle(value []byte) {
	var rec feedRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		log.Warnf("dropping undecodable feed record: %v", err)
		c.reject()
		return
	}
	switch {
	case rec.Kind == "observation" && rec.Observation != nil:
		if c.metrics != nil {
			c.metrics.ObservationsConsumed.Inc()
		}
		if err := rec.Observation.Validate(); err != nil {
			log.Warnf("rejected observation %q: %v", rec.Observation.ID, err)
			c.reject()
			return
		}
		c.buffer.AddObservation(*rec.Observation)
	case rec.Kind == "weather" && rec.Weather != nil:
		c.buffer.AddWeather(*rec.Weather)
	default:
		log.Warnf("dropping feed record of unknown kind %q", rec.Kind)
		c.reject()
	}
}

func (c *Consumer) reject() {
	if c.metrics != nil {
		c.metrics.ObservationsRejected.Inc()
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
