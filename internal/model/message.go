package model

import "time"

type Status string

const (
	Queued            Status = "queued"
	Sending           Status = "sending"
	Sent              Status = "sent"
	Failed            Status = "failed"
	PermanentlyFailed Status = "permanently_failed"
	Paused            Status = "paused"
)

// Terminal reports whether s may no longer change except through an
// explicit clear or requeue.
func (s Status) Terminal() bool {
	return s == Sent || s == PermanentlyFailed
}

func (s Status) Valid() bool {
	switch s {
	case Queued, Sending, Sent, Failed, PermanentlyFailed, Paused:
		return true
	}
	return false
}

type RecipientKind string

const (
	RecipientIndividual RecipientKind = "individual"
	RecipientGroup      RecipientKind = "group"
)

type MediaKind string

const (
	MediaNone     MediaKind = ""
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaSticker  MediaKind = "sticker"
)

// Message is one unit of outbound work: one recipient plus one payload.
type Message struct {
	ID            string
	AccountID     string
	RecipientKind RecipientKind
	Recipient     string // phone number or group JID
	GroupName     string // display name, group sends only
	Text          string // plain text, or caption when an asset is attached
	AssetPath     string // storage-relative path of the uploaded asset
	Filename      string
	MediaKind     MediaKind
	Status        Status
	Attempts      int
	OrderingIndex int
	RemoteMsgID   *string
	ErrorMessage  *string
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasAsset reports whether delivery requires a fetchable asset URL.
func (m *Message) HasAsset() bool {
	return m.AssetPath != ""
}
