package service

import (
	"time"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/google/uuid"
)

// MessageStore is the durable record store the services mutate state
// through. Implemented by repository.MessageRepository.
type MessageStore interface {
	Create(msg *model.Message) error
	FindByID(id uuid.UUID) (*model.Message, error)
	ListForOwner(ownerID *uuid.UUID) ([]model.Message, error)
	ListScheduled(ownerID *uuid.UUID) ([]model.Message, error)
	NextPendingForDevice(deviceID string, now time.Time) (*model.Message, error)
	PendingScheduled() ([]model.Message, error)
	MarkDispatched(id uuid.UUID) (bool, error)
	MarkHeard(id uuid.UUID) (*model.Message, bool, error)
	DeleteByID(id uuid.UUID) error
}

// DeviceStore tracks device registrations and presence.
// Implemented by repository.DeviceRepository.
type DeviceStore interface {
	Upsert(deviceID, wifiSSID string) (*model.Device, error)
	FindByDeviceID(deviceID string) (*model.Device, error)
	TouchLastSeen(deviceID string) error
	UpdateOnlineStatus(deviceID string, online bool) error
	List() ([]model.Device, error)
}

// RoomEmitter is the persistent-socket push channel.
// Implemented by ws.Hub.
type RoomEmitter interface {
	EmitToRoom(room string, event *model.WSEvent)
	Broadcast(event *model.WSEvent)
}

// Delivery hands a message to the push channels.
// Implemented by Dispatcher.
type Delivery interface {
	Dispatch(msg *model.Message)
	PayloadFor(msg *model.Message) model.DeliveryPayload
}
