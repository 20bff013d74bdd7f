package common

// SMSSender defines the contract for sending text messages.
type SMSSender interface {
	Send(to, body string) error
}

// InMemorySMS provides a test-friendly sender that records messages.
type InMemorySMS struct {
	Outbox []SMS
}

// SMS represents a single message captured by InMemorySMS.
type SMS struct {
	To   string
	Body string
}

// Send records the message in memory.
func (m *InMemorySMS) Send(to, body string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, SMS{To: to, Body: body})
	return nil
}

// NopSMSSender implements SMSSender without performing any action.
type NopSMSSender struct{}

// Send implements SMSSender.
func (NopSMSSender) Send(string, string) error { return nil }
