package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emobox/emobox-api/internal/model"
)

// fakeMessageStore is an in-memory MessageStore with the same conditional
// update semantics as the Postgres repository.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[uuid.UUID]*model.Message)}
}

func (f *fakeMessageStore) Create(msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeMessageStore) FindByID(id uuid.UUID) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMessageStore) ListForOwner(ownerID *uuid.UUID) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Message{}
	for _, msg := range f.messages {
		if ownerID != nil && (msg.OwnerID == nil || *msg.OwnerID != *ownerID) {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessageStore) ListScheduled(ownerID *uuid.UUID) ([]model.Message, error) {
	all, _ := f.ListForOwner(ownerID)
	out := []model.Message{}
	for _, msg := range all {
		if msg.Kind == model.MessageKindScheduled {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) NextPendingForDevice(deviceID string, now time.Time) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *model.Message
	for _, msg := range f.messages {
		if msg.State == model.MessageStateHeard {
			continue
		}
		if msg.TargetDevice != deviceID && msg.TargetDevice != model.TargetBroadcast {
			continue
		}
		if msg.Kind == model.MessageKindScheduled {
			if msg.TriggerAt == nil || msg.TriggerAt.After(now) {
				continue
			}
		}
		if best == nil {
			best = msg
			continue
		}
		// realtime preempts scheduled
		if msg.Kind == model.MessageKindRealtime && best.Kind == model.MessageKindScheduled {
			best = msg
			continue
		}
		if msg.Kind == best.Kind {
			switch msg.Kind {
			case model.MessageKindRealtime:
				if msg.CreatedAt.Before(best.CreatedAt) {
					best = msg
				}
			case model.MessageKindScheduled:
				if msg.TriggerAt.Before(*best.TriggerAt) {
					best = msg
				}
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeMessageStore) PendingScheduled() ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Message{}
	for _, msg := range f.messages {
		if msg.Kind == model.MessageKindScheduled && msg.State == model.MessageStatePending {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) MarkDispatched(id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.State != model.MessageStatePending {
		return false, nil
	}
	msg.State = model.MessageStateDispatched
	return true, nil
}

func (f *fakeMessageStore) MarkHeard(id uuid.UUID) (*model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, false, model.ErrNotFound
	}
	if msg.State == model.MessageStateHeard {
		cp := *msg
		return &cp, false, nil
	}
	now := time.Now()
	msg.State = model.MessageStateHeard
	msg.HeardAt = &now
	cp := *msg
	return &cp, true, nil
}

func (f *fakeMessageStore) DeleteByID(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.messages, id)
	return nil
}

// fakeDeviceStore records registrations and touches
type fakeDeviceStore struct {
	mu      sync.Mutex
	devices map[string]*model.Device
	touches int
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{devices: make(map[string]*model.Device)}
}

func (f *fakeDeviceStore) Upsert(deviceID, wifiSSID string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[deviceID]
	if !ok {
		device = &model.Device{ID: uuid.New(), DeviceID: deviceID}
		f.devices[deviceID] = device
	}
	device.WifiSSID = wifiSSID
	device.Online = true
	device.LastSeen = time.Now()
	cp := *device
	return &cp, nil
}

func (f *fakeDeviceStore) FindByDeviceID(deviceID string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[deviceID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *device
	return &cp, nil
}

func (f *fakeDeviceStore) TouchLastSeen(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if device, ok := f.devices[deviceID]; ok {
		device.LastSeen = time.Now()
		device.Online = true
	}
	return nil
}

func (f *fakeDeviceStore) UpdateOnlineStatus(deviceID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device, ok := f.devices[deviceID]; ok {
		device.Online = online
	}
	return nil
}

func (f *fakeDeviceStore) List() ([]model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Device{}
	for _, device := range f.devices {
		out = append(out, *device)
	}
	return out, nil
}

// fakeEmitter captures socket-channel events
type fakeEmitter struct {
	mu     sync.Mutex
	emits  []emittedEvent
	bcasts []*model.WSEvent
}

type emittedEvent struct {
	room  string
	event *model.WSEvent
}

func (f *fakeEmitter) EmitToRoom(room string, event *model.WSEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emittedEvent{room: room, event: event})
}

func (f *fakeEmitter) Broadcast(event *model.WSEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bcasts = append(f.bcasts, event)
}

func (f *fakeEmitter) emitted() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emittedEvent{}, f.emits...)
}

func (f *fakeEmitter) broadcasts() []*model.WSEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.WSEvent{}, f.bcasts...)
}

// fakePublisher captures pub/sub-channel publishes and can simulate outages
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	fail      bool
}

type publishedMsg struct {
	topic   string
	payload interface{}
}

func (f *fakePublisher) Publish(topic string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return model.ErrChannelUnavailable
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for _, p := range f.published {
		out = append(out, p.topic)
	}
	return out
}

// countingDelivery counts Dispatch calls per message id
type countingDelivery struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
}

func newCountingDelivery() *countingDelivery {
	return &countingDelivery{calls: make(map[uuid.UUID]int)}
}

func (d *countingDelivery) Dispatch(msg *model.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[msg.ID]++
}

func (d *countingDelivery) PayloadFor(msg *model.Message) model.DeliveryPayload {
	return model.DeliveryPayload{ID: msg.ID, Title: msg.Title, VoiceURL: msg.AudioURL, TriggerAt: msg.TriggerAt}
}

func (d *countingDelivery) count(id uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func (d *countingDelivery) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}
