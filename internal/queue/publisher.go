// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue publishes converted issues to Redis as Celery-compatible
// tasks, handing Jira creation and attachment upload to an external worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/deskbridge/migrator/internal/models"
)

// UploadTask is the Celery task name the upload worker registers.
const UploadTask = "migrator.tasks.upload_issue"

// store is the subset of *redis.Client the publisher uses.
type store interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Publisher sends converted issues to Redis in Celery task format.
type Publisher struct {
	rdb       store
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb store, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// AttachmentRef points the worker at one binary to upload.
type AttachmentRef struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

// IssueJob is the payload of one upload task.
type IssueJob struct {
	TicketID    int64           `json:"ticket_id"`
	Issue       *models.Issue   `json:"issue"`
	Attachments []AttachmentRef `json:"attachments"`
	EnqueuedAt  string          `json:"enqueued_at"`
}

// celeryTask represents a Celery-compatible task message.
type celeryTask struct {
	ID      string        `json:"id"`
	Task    string        `json:"task"`
	Args    []interface{} `json:"args"`
	Kwargs  interface{}   `json:"kwargs"`
	Retries int           `json:"retries"`
	ETA     *string       `json:"eta"`
}

// celeryMessage wraps a task for Redis transport.
type celeryMessage struct {
	Body            string                 `json:"body"`
	ContentEncoding string                 `json:"content-encoding"`
	ContentType     string                 `json:"content-type"`
	Headers         map[string]interface{} `json:"headers"`
	Properties      map[string]interface{} `json:"properties"`
}

// PublishIssue serialises a converted issue and its attachments and pushes
// it as a Celery task. It returns the task id.
func (p *Publisher) PublishIssue(ctx context.Context, ticketID int64, issue *models.Issue, attachments []AttachmentRef) (string, error) {
	job := IssueJob{
		TicketID:    ticketID,
		Issue:       issue,
		Attachments: attachments,
		EnqueuedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal issue job: %w", err)
	}

	taskID := uuid.New().String()

	task := celeryTask{
		ID:     taskID,
		Task:   UploadTask,
		Args:   []interface{}{string(jobJSON)},
		Kwargs: map[string]interface{}{},
	}
	taskBody, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal celery task: %w", err)
	}

	msg := celeryMessage{
		Body:            string(taskBody),
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: map[string]interface{}{
			"lang":    "py",
			"task":    UploadTask,
			"id":      taskID,
			"retries": 0,
		},
		Properties: map[string]interface{}{
			"correlation_id": taskID,
			"delivery_mode":  2,
			"delivery_tag":   taskID,
			"body_encoding":  "utf-8",
			"exchange":       p.queueName,
			"routing_key":    p.queueName,
			"delivery_info": map[string]string{
				"exchange":    p.queueName,
				"routing_key": p.queueName,
			},
		},
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal celery message: %w", err)
	}

	// Celery consumes with BRPOP, so LPUSH keeps FIFO order.
	if err := p.rdb.LPush(ctx, p.queueName, string(msgJSON)).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published issue to upload queue",
		"task_id", taskID,
		"ticket_id", ticketID,
		"attachments", len(attachments),
		"queue", p.queueName,
	)
	return taskID, nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
