package model

import "github.com/google/uuid"

// ========== Message DTOs ==========

// CreateAlarmForm carries the multipart fields for POST /alarms.
// The web client submits separate date and time inputs; trigger_at is the
// RFC3339 alternative used by API clients.
type CreateAlarmForm struct {
	Title        string `form:"title"`
	Date         string `form:"date"`       // 2006-01-02
	Time         string `form:"time"`       // 15:04
	TriggerAt    string `form:"trigger_at"` // RFC3339, wins over date+time
	TargetDevice string `form:"target_device"`
}

// CreateMessageForm carries the multipart fields for POST /messages
type CreateMessageForm struct {
	Title        string `form:"title"`
	TargetDevice string `form:"target_device"`
}

// ========== Device DTOs ==========

type RegisterDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	WifiSSID string `json:"wifi_ssid"`
}

type AcknowledgeRequest struct {
	MessageID uuid.UUID `json:"message_id" binding:"required"`
	Source    string    `json:"source"` // "playback" or "button", informational
}

// PollResponse is the pull-channel answer for a device
type PollResponse struct {
	HasMessage bool             `json:"has_message"`
	Message    *DeliveryPayload `json:"message,omitempty"`
}

// ========== Generic responses ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
