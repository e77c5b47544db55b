package service

import (
	"log"
	"time"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/ws"
	"github.com/google/uuid"
)

// MessageService owns the message lifecycle: validated creation, dispatch,
// the polling inbox and acknowledgment.
type MessageService struct {
	msgStore    MessageStore
	deviceStore DeviceStore
	scheduler   *Scheduler
	delivery    Delivery
	hub         RoomEmitter

	// overridable clock for tests
	now func() time.Time
}

func NewMessageService(
	msgStore MessageStore,
	deviceStore DeviceStore,
	scheduler *Scheduler,
	delivery Delivery,
	hub RoomEmitter,
) *MessageService {
	return &MessageService{
		msgStore:    msgStore,
		deviceStore: deviceStore,
		scheduler:   scheduler,
		delivery:    delivery,
		hub:         hub,
		now:         time.Now,
	}
}

// ParseTriggerAt resolves the alarm instant from either an RFC3339 value or
// the web form's separate date and time fields. RFC3339 wins when both are
// present.
func ParseTriggerAt(rfc3339, date, timeOfDay string) (time.Time, error) {
	if rfc3339 != "" {
		t, err := time.Parse(time.RFC3339, rfc3339)
		if err != nil {
			return time.Time{}, model.NewValidationError("trigger_at", "must be RFC3339")
		}
		return t, nil
	}
	if date == "" || timeOfDay == "" {
		return time.Time{}, model.NewValidationError("trigger_at", "date and time are required")
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, model.NewValidationError("trigger_at", "unparseable date/time")
	}
	return t, nil
}

func normalizeTarget(target string) string {
	if target == "" {
		return model.TargetBroadcast
	}
	return target
}

// CreateRealtime persists a realtime message and dispatches it
// synchronously. The returned message has already progressed to dispatched.
func (s *MessageService) CreateRealtime(ownerID *uuid.UUID, title, targetDevice, audioURL string) (*model.Message, error) {
	if audioURL == "" {
		return nil, model.NewValidationError("voice", "audio clip is required")
	}

	msg := &model.Message{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		TargetDevice: normalizeTarget(targetDevice),
		Title:        title,
		AudioURL:     audioURL,
		Kind:         model.MessageKindRealtime,
		State:        model.MessageStatePending,
	}
	if err := s.msgStore.Create(msg); err != nil {
		return nil, err
	}

	// Dispatch is synchronous with create for realtime messages
	if _, err := s.msgStore.MarkDispatched(msg.ID); err != nil {
		log.Printf("⚠️  Failed to mark message %s dispatched: %v", msg.ID, err)
	} else {
		msg.State = model.MessageStateDispatched
	}
	s.delivery.Dispatch(msg)

	return msg, nil
}

// CreateScheduled persists a scheduled message and arms its timer. The
// timer is armed only after the record is durably written, so a storage
// failure never leaves a timer pointing at nothing.
func (s *MessageService) CreateScheduled(ownerID *uuid.UUID, title, targetDevice, audioURL string, triggerAt time.Time) (*model.Message, error) {
	if audioURL == "" {
		return nil, model.NewValidationError("voice", "audio clip is required")
	}
	if triggerAt.IsZero() {
		return nil, model.NewValidationError("trigger_at", "alarm time is required")
	}
	if !triggerAt.After(s.now()) {
		return nil, model.NewValidationError("trigger_at", "alarm time is in the past")
	}

	msg := &model.Message{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		TargetDevice: normalizeTarget(targetDevice),
		Title:        title,
		AudioURL:     audioURL,
		Kind:         model.MessageKindScheduled,
		TriggerAt:    &triggerAt,
		State:        model.MessageStatePending,
	}
	if err := s.msgStore.Create(msg); err != nil {
		return nil, err
	}

	s.scheduler.Arm(msg)
	return msg, nil
}

// Get returns a message by id
func (s *MessageService) Get(id uuid.UUID) (*model.Message, error) {
	return s.msgStore.FindByID(id)
}

// List returns an owner's messages, newest first (all messages for a nil
// owner)
func (s *MessageService) List(ownerID *uuid.UUID) ([]model.Message, error) {
	return s.msgStore.ListForOwner(ownerID)
}

// ListAlarms returns scheduled messages only
func (s *MessageService) ListAlarms(ownerID *uuid.UUID) ([]model.Message, error) {
	return s.msgStore.ListScheduled(ownerID)
}

// DeleteAlarm removes a message and disarms its timer
func (s *MessageService) DeleteAlarm(id uuid.UUID) error {
	if _, err := s.msgStore.FindByID(id); err != nil {
		return err
	}
	s.scheduler.Cancel(id)
	return s.msgStore.DeleteByID(id)
}

// NextForDevice answers the pull channel: the next undelivered message for
// a device, shaped as a delivery payload. Read-only on message state.
func (s *MessageService) NextForDevice(deviceID string) (*model.PollResponse, error) {
	if err := s.deviceStore.TouchLastSeen(deviceID); err != nil {
		log.Printf("⚠️  Failed to touch device %s: %v", deviceID, err)
	}

	msg, err := s.msgStore.NextPendingForDevice(deviceID, s.now())
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return &model.PollResponse{HasMessage: false}, nil
	}

	payload := s.delivery.PayloadFor(msg)
	return &model.PollResponse{HasMessage: true, Message: &payload}, nil
}

// Acknowledge marks a message heard and notifies its owner. Idempotent: a
// repeat acknowledgment is a no-op and emits no second notification.
func (s *MessageService) Acknowledge(messageID uuid.UUID, deviceID, source string) (*model.Message, error) {
	msg, transitioned, err := s.msgStore.MarkHeard(messageID)
	if err != nil {
		return nil, err
	}

	if err := s.deviceStore.TouchLastSeen(deviceID); err != nil {
		log.Printf("⚠️  Failed to touch device %s: %v", deviceID, err)
	}

	if transitioned {
		log.Printf("🔔 Message %s heard by %s (source=%s)", messageID, deviceID, source)
		if msg.OwnerID != nil && s.hub != nil {
			s.hub.EmitToRoom(ws.OwnerRoom(msg.OwnerID.String()), &model.WSEvent{
				Type: model.WSEventMessageListened,
				Payload: model.ListenedEvent{
					MessageID: msg.ID.String(),
					DeviceID:  deviceID,
					Title:     msg.Title,
				},
			})
		}
	}

	return msg, nil
}

// RegisterDevice upserts a device registration
func (s *MessageService) RegisterDevice(deviceID, wifiSSID string) (*model.Device, error) {
	if deviceID == "" {
		return nil, model.NewValidationError("device_id", "device id is required")
	}
	return s.deviceStore.Upsert(deviceID, wifiSSID)
}

// ListDevices returns all registered devices
func (s *MessageService) ListDevices() ([]model.Device, error) {
	return s.deviceStore.List()
}
