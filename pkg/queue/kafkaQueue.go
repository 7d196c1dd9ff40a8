package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaQueue writes tasks keyed by task type and reads them in a consumer group.
// Failed tasks are logged and committed; Kafka offers no per-message requeue.
type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
	log     logrus.FieldLogger
}

func NewKafkaQueue(brokers []string, topic, groupID string, log logrus.FieldLogger) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	log.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("Kafka queue configured")

	return &KafkaQueue{
		writer:  writer,
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
		log:     log,
	}
}

func (k *KafkaQueue) Publish(ctx context.Context, task *Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(task.Type),
		Value: value,
		Time:  time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (k *KafkaQueue) Subscribe(ctx context.Context, handler func(*Task) error) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    k.topic,
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch kafka message: %w", err)
		}

		var task Task
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			k.log.WithError(err).WithField("offset", msg.Offset).Error("Skipping undecodable message")
		} else if err := handler(&task); err != nil {
			k.log.WithError(err).WithField("task_id", task.ID).Error("Task failed")
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.log.WithError(err).Error("Failed to commit kafka offset")
		}
	}
}

func (k *KafkaQueue) Close() error {
	return k.writer.Close()
}
