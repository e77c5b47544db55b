package model

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered ESP32 playback endpoint
type Device struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DeviceID  string    `json:"device_id" gorm:"size:100;uniqueIndex;not null"`
	WifiSSID  string    `json:"wifi_ssid" gorm:"size:100"`
	Online    bool      `json:"online" gorm:"default:false"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
