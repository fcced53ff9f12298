package models

import "time"

// Submission is the payload captured at the edge: the raw query parameters
// of a single inbound request plus the identifier used to collapse
// duplicate deliveries downstream. It carries no schema beyond that; field
// validation belongs to the processor.
type Submission struct {
	RequestID  string            `json:"request_id"`
	Fields     map[string]string `json:"fields"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Envelope is what travels on the bus. Immutable once published.
type Envelope struct {
	Submission  Submission `json:"submission"`
	Topic       string     `json:"topic"`
	PublishedAt time.Time  `json:"published_at"`
}
