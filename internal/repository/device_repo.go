package repository

import (
	"errors"
	"time"

	"github.com/emobox/emobox-api/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository handles database operations for Device
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert registers a device or refreshes an existing registration
func (r *DeviceRepository) Upsert(deviceID, wifiSSID string) (*model.Device, error) {
	device := model.Device{
		DeviceID: deviceID,
		WifiSSID: wifiSSID,
		Online:   true,
		LastSeen: time.Now(),
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wifi_ssid", "online", "last_seen", "updated_at"}),
	}).Create(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// FindByDeviceID looks a device up by its external id
func (r *DeviceRepository) FindByDeviceID(deviceID string) (*model.Device, error) {
	var device model.Device
	err := r.db.Where("device_id = ?", deviceID).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// TouchLastSeen records device activity (poll or ack)
func (r *DeviceRepository) TouchLastSeen(deviceID string) error {
	return r.db.Model(&model.Device{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]interface{}{
			"last_seen": time.Now(),
			"online":    true,
		}).Error
}

// UpdateOnlineStatus flips a device's presence flag
func (r *DeviceRepository) UpdateOnlineStatus(deviceID string, online bool) error {
	updates := map[string]interface{}{"online": online}
	if online {
		updates["last_seen"] = time.Now()
	}
	return r.db.Model(&model.Device{}).
		Where("device_id = ?", deviceID).
		Updates(updates).Error
}

// List returns all registered devices
func (r *DeviceRepository) List() ([]model.Device, error) {
	devices := []model.Device{}
	err := r.db.Order("last_seen DESC").Find(&devices).Error
	return devices, err
}
