// Package queue carries decision messages from the services to the notifier.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrPermanent marks handler failures that must not be retried.
var ErrPermanent = errors.New("permanent task failure")

type TaskType string

const (
	TaskTypeRegistrationDecided   TaskType = "registration_decided"
	TaskTypeRegistrationPromoted  TaskType = "registration_promoted"
	TaskTypeRegistrationCancelled TaskType = "registration_cancelled"
	TaskTypeBookingDecided        TaskType = "booking_decided"
)

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	// Subscribe blocks until ctx is done or the transport fails.
	Subscribe(ctx context.Context, handler func(*Task) error) error
	Close() error
}

// Task represents a unit of work in the queue
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

func NewTask(taskType TaskType, data map[string]interface{}) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: defaultMaxRetries,
	}
}

// Validate checks if the task is valid
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Data == nil {
		t.Data = make(map[string]interface{})
	}
	return nil
}

func (t *Task) GetString(key string) string {
	if val, ok := t.Data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt accepts float64 because JSON numbers decode that way.
func (t *Task) GetInt(key string) int {
	if val, ok := t.Data[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return 0
}
