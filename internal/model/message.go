package model

import (
	"time"

	"github.com/google/uuid"
)

// TargetBroadcast is the sentinel device id meaning "every device".
const TargetBroadcast = "broadcast"

// MessageKind discriminates immediate voice notes from scheduled alarms
type MessageKind string

const (
	MessageKindRealtime  MessageKind = "realtime"
	MessageKindScheduled MessageKind = "scheduled"
)

// MessageState is the delivery lifecycle status of a message
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateDispatched MessageState = "dispatched"
	MessageStateHeard      MessageState = "heard"
)

// Message is a voice note or spoken alarm addressed to a device.
// State only moves forward: pending -> dispatched -> heard.
type Message struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID      *uuid.UUID   `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	TargetDevice string       `json:"target_device" gorm:"size:100;index;default:'broadcast'"`
	Title        string       `json:"title" gorm:"size:255"`
	AudioURL     string       `json:"audio_url" gorm:"size:500;not null"`
	Kind         MessageKind  `json:"kind" gorm:"type:varchar(20);index;not null"`
	TriggerAt    *time.Time   `json:"trigger_at,omitempty" gorm:"type:timestamptz;index"`
	State        MessageState `json:"state" gorm:"type:varchar(20);index;default:'pending'"`
	HeardAt      *time.Time   `json:"heard_at,omitempty" gorm:"type:timestamptz"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsBroadcast reports whether the message targets every device
func (m *Message) IsBroadcast() bool {
	return m.TargetDevice == TargetBroadcast || m.TargetDevice == ""
}

// DeliveryPayload is what the push channels carry to a device.
// Field names match what the ESP32 firmware parses.
type DeliveryPayload struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	VoiceURL  string     `json:"voiceUrl"`
	MusicURL  string     `json:"musicUrl,omitempty"`
	TriggerAt *time.Time `json:"triggerAt,omitempty"`
}
