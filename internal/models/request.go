package models

import "time"

// Вид описания заявки: свободный текст или голосовая запись.
const (
	InputKindText  = "TEXT"
	InputKindAudio = "AUDIO"
)

// Статусы заявки. Переходы делает админка, intake только создаёт submitted.
const (
	RequestStatusSubmitted = "submitted"
)

// Канал, через который реально ушло уведомление оператору.
const (
	ChannelPrimaryAPI = "PRIMARY_API"
	ChannelSMTP       = "SMTP"
	ChannelNone       = "NONE"
)

// SubmissionInput — разобранная форма с публичной страницы, живёт один вызов.
type SubmissionInput struct {
	Name         string
	Phone        string
	Neighborhood string
	Description  string
	InputKind    string
	Position     string // сырое поле "lat, lng"
	MapsLink     string

	Audio *FilePayload
	Photo *FilePayload
}

// FilePayload holds one uploaded file part as received.
type FilePayload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// EncodedAttachment is the transport-neutral form of a payload. It is owned
// by the submission that created it and is never persisted to the store.
type EncodedAttachment struct {
	MIMEType string
	Filename string
	Size     int
	Content  string // base64
}

// NotificationOutcome records which channel delivered the operator
// notification. Exactly one outcome exists per submission attempt.
type NotificationOutcome struct {
	Channel   string  `json:"channel"`
	MessageID *string `json:"id,omitempty"`
	Error     *string `json:"error,omitempty"`
}

func (o NotificationOutcome) Sent() bool {
	return o.Channel != "" && o.Channel != ChannelNone
}

// TrackingRecord — то, что лежит в сторе под трекинг-кодом. Создаётся один
// раз, сервисом не мутируется и не удаляется.
type TrackingRecord struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	MapsLink     string   `json:"mapsLink,omitempty"`
	InputKind    string   `json:"inputType"`
	Description  string   `json:"description,omitempty"`

	HasAudio bool    `json:"hasAudio"`
	HasPhoto bool    `json:"hasPhoto"`
	AudioURL *string `json:"audioUrl"`
	PhotoURL *string `json:"photoUrl"`

	Notification NotificationOutcome `json:"notification"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
