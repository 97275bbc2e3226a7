package messages

import "time"

// RequestSubmitted публикуется после записи заявки в стор. Поток читает
// админка; для intake это событие строго best-effort.
type RequestSubmitted struct {
	TrackingCode string    `json:"tracking_code"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	InputKind    string    `json:"input_kind"`
	HasAudio     bool      `json:"has_audio"`
	HasPhoto     bool      `json:"has_photo"`
	Notified     bool      `json:"notified"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
