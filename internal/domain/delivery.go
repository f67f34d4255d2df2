package domain

import "time"

// RenderedMessage is the final content handed to the delivery stage.
type RenderedMessage struct {
	Subject string
	HTML    string
	Text    string
}

// Attachment is an in-memory file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// DeliveryResult is the outcome for exactly one recipient.
type DeliveryResult struct {
	Recipient     string `json:"recipient"`
	BatchIndex    int    `json:"batch"`
	Succeeded     bool   `json:"succeeded"`
	FailureReason string `json:"failure_reason,omitempty"`
	Individually  bool   `json:"individually,omitempty"`
}

// DeliverySummary aggregates one dispatch call.
type DeliverySummary struct {
	Day        string           `json:"date"`
	SentAt     time.Time        `json:"sent_at"`
	Recipients int              `json:"total_recipients"`
	Succeeded  int              `json:"success_count"`
	Failed     int              `json:"failure_count"`
	Batches    int              `json:"batches"`
	Results    []DeliveryResult `json:"results"`
}

// Tally recomputes the counters from Results.
func (s *DeliverySummary) Tally() {
	s.Recipients = len(s.Results)
	s.Succeeded, s.Failed = 0, 0
	for _, r := range s.Results {
		if r.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
}
