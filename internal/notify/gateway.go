package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/resilience"
)

// Gateway posts messages to the external SMS provider through the
// resilient HTTP client so a flapping provider cannot stall the worker.
type Gateway struct {
	HTTP   resilience.HTTPClient
	URL    string
	APIKey string
}

type gatewayRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send delivers one message. Non-2xx responses are reported as errors so
// the queue retries them.
func (g Gateway) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(gatewayRequest{To: to, Message: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	start := time.Now()
	resp, err := g.HTTP.Do(ctx, req)
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		obs.SMSAttemptLatency.WithLabelValues("error").Observe(elapsed)
		obs.SMSDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		obs.SMSAttemptLatency.WithLabelValues("rejected").Observe(elapsed)
		obs.SMSDeliveriesTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("sms gateway: unexpected status %s", resp.Status)
	}
	obs.SMSAttemptLatency.WithLabelValues("ok").Observe(elapsed)
	obs.SMSDeliveriesTotal.WithLabelValues("ok").Inc()
	return nil
}
