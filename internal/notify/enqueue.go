package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/sofreh/backend-resto/internal/common"
)

// Enqueuer hands SMS off to the worker queue. It satisfies the dispatcher
// interface the OTP flow and order notifications use.
type Enqueuer struct {
	Client   *asynq.Client
	MaxRetry int
}

// DispatchSMS enqueues one delivery task.
func (e Enqueuer) DispatchSMS(ctx context.Context, to, body string) error {
	if e.Client == nil {
		return errors.New("notify: task client not configured")
	}
	if strings.TrimSpace(to) == "" {
		return nil
	}
	task, err := NewSMSDeliveryTask(to, body)
	if err != nil {
		return fmt.Errorf("build sms task: %w", err)
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	if _, err := e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue sms task: %w", err)
	}
	return nil
}

// DirectDispatcher sends synchronously through an SMSSender. Used in
// development and tests where no worker is running.
type DirectDispatcher struct {
	Sender common.SMSSender
}

// DispatchSMS sends immediately.
func (d DirectDispatcher) DispatchSMS(_ context.Context, to, body string) error {
	if d.Sender == nil {
		return nil
	}
	return d.Sender.Send(to, body)
}
