package repository

import (
	"errors"
	"time"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message.
// It is the only component that mutates message state; the scheduler and
// acknowledgment path call into it instead of writing rows themselves.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListForOwner returns an owner's messages, newest first. A nil owner lists
// everything (the unauthenticated deployment mode).
func (r *MessageRepository) ListForOwner(ownerID *uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.Order("created_at DESC")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	err := query.Find(&messages).Error
	return messages, err
}

// ListScheduled returns scheduled messages, soonest trigger first
func (r *MessageRepository) ListScheduled(ownerID *uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Where("kind = ?", model.MessageKindScheduled).
		Order("trigger_at ASC")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	err := query.Find(&messages).Error
	return messages, err
}

// NextPendingForDevice returns the next undelivered message for a device.
// Realtime messages preempt scheduled ones; scheduled messages only become
// visible once due.
func (r *MessageRepository) NextPendingForDevice(deviceID string, now time.Time) (*model.Message, error) {
	var msg model.Message

	err := r.db.
		Where("state <> ?", model.MessageStateHeard).
		Where("kind = ?", model.MessageKindRealtime).
		Where("target_device IN ?", []string{deviceID, model.TargetBroadcast}).
		Order("created_at ASC").
		First(&msg).Error
	if err == nil {
		return &msg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.
		Where("state <> ?", model.MessageStateHeard).
		Where("kind = ?", model.MessageKindScheduled).
		Where("target_device IN ?", []string{deviceID, model.TargetBroadcast}).
		Where("trigger_at <= ?", now).
		Order("trigger_at ASC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PendingScheduled returns scheduled messages that were never dispatched.
// The scheduler replays these on startup.
func (r *MessageRepository) PendingScheduled() ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.
		Where("state = ? AND kind = ?", model.MessageStatePending, model.MessageKindScheduled).
		Order("trigger_at ASC").
		Find(&messages).Error
	return messages, err
}

// MarkDispatched claims the pending -> dispatched transition with a single
// conditional UPDATE. Returns false when another caller already claimed it.
func (r *MessageRepository) MarkDispatched(id uuid.UUID) (bool, error) {
	res := r.db.Model(&model.Message{}).
		Where("id = ? AND state = ?", id, model.MessageStatePending).
		Update("state", model.MessageStateDispatched)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkHeard transitions a message to heard. Idempotent: the bool reports
// whether this call performed the transition, so the caller emits at most
// one owner notification even under concurrent acknowledgments.
func (r *MessageRepository) MarkHeard(id uuid.UUID) (*model.Message, bool, error) {
	res := r.db.Model(&model.Message{}).
		Where("id = ? AND state <> ?", id, model.MessageStateHeard).
		Updates(map[string]interface{}{
			"state":    model.MessageStateHeard,
			"heard_at": time.Now(),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	msg, err := r.FindByID(id)
	if err != nil {
		return nil, false, err
	}
	return msg, res.RowsAffected > 0, nil
}

// DeleteByID removes a message
func (r *MessageRepository) DeleteByID(id uuid.UUID) error {
	res := r.db.Delete(&model.Message{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
