package model

// WSEventType identifies an event on the persistent-socket channel
type WSEventType string

const (
	// Server -> device room: a message is ready to play now
	WSEventRealtimeMessage WSEventType = "realtime-message"
	// Server -> owner room: the device confirmed playback
	WSEventMessageListened WSEventType = "message-listened"
	// Presence, broadcast to interested clients
	WSEventDeviceOnline  WSEventType = "device-online"
	WSEventDeviceOffline WSEventType = "device-offline"
)

// WSEvent is the envelope for every socket frame
type WSEvent struct {
	Type    WSEventType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ListenedEvent tells an owner their message was heard
type ListenedEvent struct {
	MessageID string `json:"message_id"`
	DeviceID  string `json:"device_id"`
	Title     string `json:"title"`
}

// PresenceEvent announces a device coming or going
type PresenceEvent struct {
	DeviceID string `json:"device_id"`
	Online   bool   `json:"online"`
}
