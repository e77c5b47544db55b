package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emobox/emobox-api/internal/config"
	"github.com/emobox/emobox-api/internal/model"
)

func main() {
	// Load config
	cfg := config.Load()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	// Create 3 demo devices
	log.Println("🌱 Seeding 3 devices...")
	for i := 1; i <= 3; i++ {
		deviceID := fmt.Sprintf("esp%d", i)

		var existing model.Device
		if err := db.Where("device_id = ?", deviceID).First(&existing).Error; err == nil {
			continue
		}

		device := model.Device{
			ID:       uuid.New(),
			DeviceID: deviceID,
			WifiSSID: "emobox-lab",
			Online:   false,
			LastSeen: time.Now(),
		}
		if err := db.Create(&device).Error; err != nil {
			log.Printf("⚠️  Failed to seed device %s: %v", deviceID, err)
			continue
		}
		log.Printf("📟 Seeded device: %s", deviceID)
	}

	// A broadcast voice note and a scheduled alarm for tomorrow morning
	log.Println("🌱 Seeding sample messages...")

	var count int64
	db.Model(&model.Message{}).Count(&count)
	if count > 0 {
		log.Println("📦 Messages already present, skipping")
		return
	}

	note := model.Message{
		ID:           uuid.New(),
		TargetDevice: model.TargetBroadcast,
		Title:        "Welcome to EmoBox",
		AudioURL:     "http://localhost:9000/emobox-voices/voices/demo/welcome.webm",
		Kind:         model.MessageKindRealtime,
		State:        model.MessageStateDispatched,
	}
	if err := db.Create(&note).Error; err != nil {
		log.Printf("⚠️  Failed to seed welcome note: %v", err)
	} else {
		log.Printf("💬 Seeded realtime message: %s", note.Title)
	}

	tomorrow := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	alarm := model.Message{
		ID:           uuid.New(),
		TargetDevice: "esp1",
		Title:        "Good morning",
		AudioURL:     "http://localhost:9000/emobox-voices/voices/demo/morning.webm",
		Kind:         model.MessageKindScheduled,
		TriggerAt:    &tomorrow,
		State:        model.MessageStatePending,
	}
	if err := db.Create(&alarm).Error; err != nil {
		log.Printf("⚠️  Failed to seed alarm: %v", err)
	} else {
		log.Printf("⏰ Seeded scheduled alarm: %s at %s", alarm.Title, tomorrow.Format(time.RFC3339))
	}

	log.Println("✅ Seeding complete")
}
