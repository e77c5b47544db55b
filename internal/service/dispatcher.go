package service

import (
	"log"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/ws"
	"github.com/emobox/emobox-api/pkg/mqtt"
)

// Dispatcher pushes a ready message at the target device over the available
// channels. Both pushes are best-effort: a failure is logged and swallowed,
// because the record stays visible to the polling endpoint either way.
type Dispatcher struct {
	publisher   mqtt.Publisher
	hub         RoomEmitter
	topicPrefix string
	musicURL    string
}

// NewDispatcher creates a dispatcher. publisher and hub may be nil when a
// channel is disabled; the polling fallback still works.
func NewDispatcher(publisher mqtt.Publisher, hub RoomEmitter, topicPrefix, musicURL string) *Dispatcher {
	if topicPrefix == "" {
		topicPrefix = "emobox"
	}
	return &Dispatcher{
		publisher:   publisher,
		hub:         hub,
		topicPrefix: topicPrefix,
		musicURL:    musicURL,
	}
}

// PayloadFor builds the wire payload a device receives for a message
func (d *Dispatcher) PayloadFor(msg *model.Message) model.DeliveryPayload {
	payload := model.DeliveryPayload{
		ID:       msg.ID,
		Title:    msg.Title,
		VoiceURL: msg.AudioURL,
	}
	if msg.Kind == model.MessageKindScheduled {
		payload.TriggerAt = msg.TriggerAt
		payload.MusicURL = d.musicURL
	}
	return payload
}

// Dispatch attempts push delivery on the pub/sub and socket channels
func (d *Dispatcher) Dispatch(msg *model.Message) {
	payload := d.PayloadFor(msg)

	if d.publisher != nil {
		topic := d.topicPrefix + "/alarm"
		if !msg.IsBroadcast() {
			topic = d.topicPrefix + "/device/" + msg.TargetDevice
		}
		if err := d.publisher.Publish(topic, payload); err != nil {
			log.Printf("⚠️  MQTT push failed for message %s: %v (device will pick it up by polling)", msg.ID, err)
		}
	}

	if d.hub != nil {
		event := &model.WSEvent{
			Type:    model.WSEventRealtimeMessage,
			Payload: payload,
		}
		if msg.IsBroadcast() {
			d.hub.Broadcast(event)
		} else {
			d.hub.EmitToRoom(ws.DeviceRoom(msg.TargetDevice), event)
		}
	}
}
