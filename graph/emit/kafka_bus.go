package emit

import (
	"context"
	"encoding/json"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaLifecycleBus maps each dotted topic to a Kafka topic (with dots
// replaced, since Kafka topic names disallow them) and reads back
// through a consumer group.
type KafkaLifecycleBus struct {
	brokers []string
	group   string
	writer  *kafka.Writer
}

func NewKafkaLifecycleBus(brokers []string, group string) *KafkaLifecycleBus {
	return &KafkaLifecycleBus{
		brokers: brokers,
		group:   group,
		writer:  &kafka.Writer{Addr: kafka.TCP(brokers...), Balancer: &kafka.LeastBytes{}},
	}
}

func kafkaTopicName(prefix, topic string) string {
	out := make([]byte, len(topic))
	for i := 0; i < len(topic); i++ {
		if topic[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = topic[i]
		}
	}
	return prefix + string(out)
}

func (b *KafkaLifecycleBus) Publish(ctx context.Context, topic string, event LifecycleEvent) error {
	event.Topic = topic
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Topic: kafkaTopicName("lifecycle_", topic),
		Value: payload,
	})
}

func (b *KafkaLifecycleBus) Subscribe(ctx context.Context, topic string) (<-chan LifecycleEvent, func(), error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.brokers,
		Topic:   kafkaTopicName("lifecycle_", topic),
		GroupID: b.group,
	})
	ch := make(chan LifecycleEvent, 64)
	readCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(readCtx)
			if err != nil {
				return
			}
			var event LifecycleEvent
			if json.Unmarshal(msg.Value, &event) == nil {
				select {
				case ch <- event:
				case <-readCtx.Done():
					return
				}
			}
		}
	}()
	return ch, cancel, nil
}

func (b *KafkaLifecycleBus) Close() error { return b.writer.Close() }

// KafkaToolCallBus publishes tool-call events to a single fixed topic,
// partitioned by the runId so a subscriber sees per-run ordering.
type KafkaToolCallBus struct {
	brokers []string
	group   string
	writer  *kafka.Writer
}

const kafkaToolCallTopic = "graphcore_toolcalls"

func NewKafkaToolCallBus(brokers []string, group string) *KafkaToolCallBus {
	return &KafkaToolCallBus{
		brokers: brokers,
		group:   group,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    kafkaToolCallTopic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (b *KafkaToolCallBus) Publish(ctx context.Context, event ToolCallEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.RunID), Value: payload})
}

func (b *KafkaToolCallBus) Subscribe(ctx context.Context) (<-chan ToolCallEvent, func(), error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: b.brokers,
		Topic:   kafkaToolCallTopic,
		GroupID: b.group,
	})
	ch := make(chan ToolCallEvent, 64)
	readCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(readCtx)
			if err != nil {
				return
			}
			var event ToolCallEvent
			if json.Unmarshal(msg.Value, &event) == nil {
				select {
				case ch <- event:
				case <-readCtx.Done():
					return
				}
			}
		}
	}()
	return ch, cancel, nil
}

func (b *KafkaToolCallBus) Close() error { return b.writer.Close() }
