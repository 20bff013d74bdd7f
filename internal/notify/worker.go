package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sofreh/backend-resto/internal/obs"
)

// Sender delivers one SMS. Gateway satisfies it in production.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Worker consumes SMS delivery tasks from the queue.
type Worker struct {
	Sender Sender
	Log    zerolog.Logger
}

// HandleSMSDelivery processes one delivery task. Returned errors make
// asynq retry with backoff until the retry budget is spent.
func (w Worker) HandleSMSDelivery(ctx context.Context, task *asynq.Task) error {
	var payload SMSPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// malformed payloads never succeed, skip retries
		return fmt.Errorf("decode sms payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.Sender.Send(ctx, payload.To, payload.Body); err != nil {
		retried, okRetried := asynq.GetRetryCount(ctx)
		maxRetry, okMax := asynq.GetMaxRetry(ctx)
		if okRetried && okMax && retried >= maxRetry {
			obs.SMSDispatchDLQ.Inc()
			w.Log.Error().Err(err).Str("to", payload.To).Msg("sms delivery exhausted retries")
		} else {
			w.Log.Warn().Err(err).Str("to", payload.To).Int("retried", retried).Msg("sms delivery failed")
		}
		return err
	}
	return nil
}

// Mux builds the asynq handler mux for the worker process.
func (w Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSMSDelivery, w.HandleSMSDelivery)
	return mux
}
