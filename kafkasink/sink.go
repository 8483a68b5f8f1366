// Package kafkasink publishes committed Drip events to a Kafka topic.
//
// Each event is wrapped in an Envelope and keyed by stream id, so all records
// of one stream land on the same partition in commit order.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/xraph/drip/event"
	"github.com/xraph/drip/plugin"
)

var (
	_ plugin.Plugin     = (*Sink)(nil)
	_ plugin.OnEvent    = (*Sink)(nil)
	_ plugin.OnShutdown = (*Sink)(nil)
)

// ContractKey keys events that do not refer to a stream.
const ContractKey = "contract"

// Envelope is the message value written to Kafka.
type Envelope struct {
	Type   string          `json:"type"`
	Seq    uint64          `json:"seq"`
	Height uint64          `json:"height"`
	TS     int64           `json:"ts"`
	Data   json.RawMessage `json:"data"`
}

// Sink is a plugin that forwards every committed event to Kafka.
type Sink struct {
	topic  string
	p      sarama.SyncProducer
	logger *slog.Logger
	names  map[event.Name]bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger for the sink.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// WithEvents restricts publishing to the named events.
func WithEvents(names ...event.Name) Option {
	return func(s *Sink) {
		s.names = make(map[event.Name]bool, len(names))
		for _, n := range names {
			s.names[n] = true
		}
	}
}

// NewConfig returns a producer config tuned for at-least-once delivery.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "drip"
	cfg.Version = sarama.V2_1_0_0

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	// SyncProducer requires both.
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// New dials brokers and returns a sink writing to topic. A nil cfg uses
// NewConfig.
func New(brokers []string, topic string, cfg *sarama.Config, opts ...Option) (*Sink, error) {
	if topic == "" {
		return nil, errors.New("kafkasink: topic empty")
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafkasink: no brokers")
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: create producer: %w", err)
	}
	return NewWithProducer(p, topic, opts...), nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(p sarama.SyncProducer, topic string, opts ...Option) *Sink {
	s := &Sink{
		topic:  topic,
		p:      p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements plugin.Plugin.
func (s *Sink) Name() string { return "kafka-sink" }

// OnEvent implements plugin.OnEvent.
func (s *Sink) OnEvent(ctx context.Context, e *event.Event) error {
	if s.names != nil && !s.names[e.Name] {
		return nil
	}

	// SyncProducer has no context; bail out early instead.
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.message(e)
	if err != nil {
		return err
	}

	partition, offset, err := s.p.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafkasink: emit %s seq %d: %w", e.Name, e.Seq, err)
	}

	s.logger.Debug("event published",
		"event", string(e.Name),
		"seq", e.Seq,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// OnShutdown implements plugin.OnShutdown.
func (s *Sink) OnShutdown(_ context.Context) error {
	return s.Close()
}

// Close closes the underlying producer.
func (s *Sink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

func (s *Sink) message(e *event.Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: encode event: %w", err)
	}
	env := Envelope{
		Type:   string(e.Name),
		Seq:    e.Seq,
		Height: uint64(e.Height),
		TS:     e.Timestamp.UnixMilli(),
		Data:   data,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: encode envelope: %w", err)
	}

	return &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(Key(e)),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(e.Name)},
		},
	}, nil
}

// Key returns the partition key for e.
func Key(e *event.Event) string {
	if e.StreamID == 0 {
		return ContractKey
	}
	return strconv.FormatUint(e.StreamID, 10)
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
