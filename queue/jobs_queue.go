package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

type JobType string

const (
	JobTypeBookingConfirmation JobType = "send_booking_confirmation"
	JobTypePaymentReceipt      JobType = "send_payment_receipt"
	JobTypePaymentExpiry       JobType = "expire_payment"
)

const maxRetries = 5

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`
}

// Queue is a Redis-backed job queue: main list, processing list for
// in-flight jobs, failed list for exhausted ones and a sorted set for
// delayed retries.
type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	failed     string
	delayed    string
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		failed:     queueName + ":failed",
		delayed:    queueName + ":delayed",
	}, nil
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) error {
	job := Job{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %v", err)
	}

	log.Printf("Enqueued job %s of type %s", job.ID, job.Type)
	return nil
}

// EnqueueIn schedules a job for execution after delay. It lands on the
// delayed sorted set and the worker's scheduler promotes it once due, so
// actual execution lags the deadline by up to one scheduler tick.
func (q *Queue) EnqueueIn(ctx context.Context, jobType JobType, data map[string]interface{}, delay time.Duration) error {
	job := Job{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}

	runAt := time.Now().Add(delay)
	if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
		Score:  float64(runAt.Unix()),
		Member: jobJSON,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule job: %v", err)
	}

	log.Printf("Scheduled job %s of type %s for %s", job.ID, job.Type, runAt.Format(time.RFC3339))
	return nil
}

// Dequeue blocks up to timeout for the next job and moves it onto the
// processing list. A nil job with nil error means the timeout elapsed.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %v", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result format")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %v", err)
	}

	if err := q.client.RPush(ctx, q.processing, result[1]).Err(); err != nil {
		log.Printf("Warning: Failed to move job %s to processing queue: %v", job.ID, err)
	}

	return &job, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}

	if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %v", err)
	}

	log.Printf("Completed job %s of type %s", job.ID, job.Type)
	return nil
}

// FailJob removes the job from the processing list and schedules a delayed
// retry with capped exponential backoff, or parks it on the failed list
// once retries are exhausted.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %v", err)
	}
	if err := q.client.LRem(ctx, q.processing, 1, jobJSON).Err(); err != nil {
		log.Printf("Warning: Failed to remove job %s from processing queue: %v", job.ID, err)
	}

	job.RetryCount++
	job.Data["last_error"] = jobErr.Error()

	if job.RetryCount > maxRetries {
		finalJSON, _ := json.Marshal(job)
		if err := q.client.RPush(ctx, q.failed, finalJSON).Err(); err != nil {
			return fmt.Errorf("failed to push job to failed queue: %v", err)
		}
		log.Printf("Job %s of type %s moved to failed queue after %d retries", job.ID, job.Type, job.RetryCount-1)
		return nil
	}

	delaySeconds := 15 * (1 << (job.RetryCount - 1))
	retryAt := time.Now().Add(time.Duration(delaySeconds) * time.Second)
	updatedJSON, _ := json.Marshal(job)

	if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: updatedJSON,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule job retry: %v", err)
	}

	log.Printf("Job %s of type %s scheduled for retry %d/%d in %d seconds",
		job.ID, job.Type, job.RetryCount, maxRetries, delaySeconds)
	return nil
}

// ProcessDelayedJobs moves due delayed jobs back onto the main queue.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	now := float64(time.Now().Unix())

	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed jobs: %v", err)
	}

	for _, jobJSON := range jobs {
		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			log.Printf("Warning: Failed to move delayed job to main queue: %v", err)
			continue
		}
		if err := q.client.ZRem(ctx, q.delayed, jobJSON).Err(); err != nil {
			log.Printf("Warning: Failed to remove job from delayed queue: %v", err)
		}
	}

	return nil
}

// RetryJob manually requeues a job from the failed list with its retry
// counter reset.
func (q *Queue) RetryJob(ctx context.Context, jobID string) error {
	jobs, err := q.client.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list failed jobs: %v", err)
	}

	for _, jobJSON := range jobs {
		var job Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			log.Printf("Warning: Failed to unmarshal job: %v", err)
			continue
		}
		if job.ID != jobID {
			continue
		}

		if err := q.client.LRem(ctx, q.failed, 1, jobJSON).Err(); err != nil {
			return fmt.Errorf("failed to remove job from failed queue: %v", err)
		}

		job.RetryCount = 0
		delete(job.Data, "last_error")
		updatedJSON, _ := json.Marshal(job)

		if err := q.client.RPush(ctx, q.queueName, updatedJSON).Err(); err != nil {
			return fmt.Errorf("failed to push job to main queue: %v", err)
		}

		log.Printf("Manually requeued job %s of type %s", job.ID, job.Type)
		return nil
	}

	return fmt.Errorf("job %s not found in failed queue", jobID)
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
