package domain

import "encoding/json"

// EventMessage is one queued submission: the tracking id handed back to the
// client plus the raw event envelope to reconcile.
type EventMessage struct {
	TrackingID  string          `json:"task_id"`
	Payload     json.RawMessage `json:"payload"`
	DeliveryTag uint64          `json:"-"`
}
