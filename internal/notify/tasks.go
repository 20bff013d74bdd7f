package notify

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TypeSMSDelivery is the asynq task type for outbound SMS.
const TypeSMSDelivery = "sms:deliver"

// QueueNotifications is the asynq queue SMS tasks run on.
const QueueNotifications = "notifications"

// SMSPayload is the serialized body of an SMS delivery task.
type SMSPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// NewSMSDeliveryTask builds the asynq task for one SMS.
func NewSMSDeliveryTask(to, body string) (*asynq.Task, error) {
	payload, err := json.Marshal(SMSPayload{To: to, Body: body})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSMSDelivery, payload, asynq.Queue(QueueNotifications)), nil
}
