// Package worker drains the Redis job queue: transactional emails are
// rendered and sent off the request path so checkout latency never waits on
// SMTP.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tour-booking-api/models"
	"tour-booking-api/queue"
	"tour-booking-api/services/email"
)

// PaymentExpirer flips an overdue payment session to EXPIRED. Returns
// false when the session is gone or the payment already reached a terminal
// status.
type PaymentExpirer interface {
	ExpirePayment(sessionID, paymentID string) bool
}

type Worker struct {
	queue     *queue.Queue
	emails    email.EmailSender
	payments  PaymentExpirer
	shutdown  chan struct{}
	isRunning bool
}

func NewWorker(q *queue.Queue, es email.EmailSender, pe PaymentExpirer) *Worker {
	return &Worker{
		queue:    q,
		emails:   es,
		payments: pe,
		shutdown: make(chan struct{}),
	}
}

// Start launches the worker goroutines plus one scheduler that promotes
// delayed retries back onto the main queue.
func (w *Worker) Start(concurrency int) {
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		go w.processJobs(i)
	}
	go w.scheduleDelayed()

	log.Printf("Started %d worker goroutines", concurrency)
}

func (w *Worker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("Stopping worker...")
	close(w.shutdown)
	w.isRunning = false
}

func (w *Worker) processJobs(workerID int) {
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			cancel()

			if err != nil {
				log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			log.Printf("Worker %d processing job %s of type %s", workerID, job.ID, job.Type)

			jobErr := w.processJob(job)
			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			if jobErr != nil {
				log.Printf("Worker %d: Error processing job %s: %v", workerID, job.ID, jobErr)
				if failErr := w.queue.FailJob(ctx, job, jobErr); failErr != nil {
					log.Printf("Worker %d: Error marking job %s as failed: %v", workerID, job.ID, failErr)
				}
			} else if completeErr := w.queue.CompleteJob(ctx, job); completeErr != nil {
				log.Printf("Worker %d: Error marking job %s as complete: %v", workerID, job.ID, completeErr)
			}
			cancel()
		}
	}
}

func (w *Worker) scheduleDelayed() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				log.Printf("Error processing delayed jobs: %v", err)
			}
			cancel()
		}
	}
}

func (w *Worker) processJob(job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeBookingConfirmation:
		return w.processBookingConfirmation(job)
	case queue.JobTypePaymentReceipt:
		return w.processPaymentReceipt(job)
	case queue.JobTypePaymentExpiry:
		return w.processPaymentExpiry(job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) processBookingConfirmation(job *queue.Job) error {
	to, ok := job.Data["to"].(string)
	if !ok || to == "" {
		return fmt.Errorf("invalid recipient in job data")
	}

	var booking email.BookingEmailData
	if err := decodeJobField(job.Data["booking"], &booking); err != nil {
		return fmt.Errorf("invalid booking data: %v", err)
	}

	return w.emails.SendBookingConfirmation(to, booking)
}

func (w *Worker) processPaymentReceipt(job *queue.Job) error {
	to, ok := job.Data["to"].(string)
	if !ok || to == "" {
		return fmt.Errorf("invalid recipient in job data")
	}

	var payment models.PaymentSession
	if err := decodeJobField(job.Data["payment"], &payment); err != nil {
		return fmt.Errorf("invalid payment data: %v", err)
	}

	return w.emails.SendPaymentReceipt(to, payment)
}

func (w *Worker) processPaymentExpiry(job *queue.Job) error {
	paymentID, ok := job.Data["payment_id"].(string)
	if !ok || paymentID == "" {
		return fmt.Errorf("invalid payment id in job data")
	}
	sessionID, ok := job.Data["session_id"].(string)
	if !ok || sessionID == "" {
		return fmt.Errorf("invalid session id in job data")
	}

	if w.payments.ExpirePayment(sessionID, paymentID) {
		log.Printf("Marked overdue payment %s expired", paymentID)
	}
	return nil
}

// decodeJobField re-marshals a decoded job payload field into its concrete
// type. Job data travels as JSON maps, so structs land here as
// map[string]interface{}.
func decodeJobField(field interface{}, out interface{}) error {
	raw, err := json.Marshal(field)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
