package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/service"
	"github.com/emobox/emobox-api/pkg/storage"
)

// memStore is an in-memory service.MessageStore for HTTP-level tests
type memStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.Message
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[uuid.UUID]*model.Message)}
}

func (s *memStore) Create(msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *memStore) FindByID(id uuid.UUID) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *memStore) ListForOwner(ownerID *uuid.UUID) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Message{}
	for _, msg := range s.messages {
		if ownerID != nil && (msg.OwnerID == nil || *msg.OwnerID != *ownerID) {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListScheduled(ownerID *uuid.UUID) ([]model.Message, error) {
	all, _ := s.ListForOwner(ownerID)
	out := []model.Message{}
	for _, msg := range all {
		if msg.Kind == model.MessageKindScheduled {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *memStore) NextPendingForDevice(deviceID string, now time.Time) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Message
	for _, msg := range s.messages {
		if msg.State == model.MessageStateHeard {
			continue
		}
		if msg.TargetDevice != deviceID && msg.TargetDevice != model.TargetBroadcast {
			continue
		}
		if msg.Kind == model.MessageKindScheduled && (msg.TriggerAt == nil || msg.TriggerAt.After(now)) {
			continue
		}
		if best == nil ||
			(msg.Kind == model.MessageKindRealtime && best.Kind == model.MessageKindScheduled) ||
			(msg.Kind == best.Kind && msg.CreatedAt.Before(best.CreatedAt)) {
			best = msg
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *memStore) PendingScheduled() ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Message{}
	for _, msg := range s.messages {
		if msg.Kind == model.MessageKindScheduled && msg.State == model.MessageStatePending {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (s *memStore) MarkDispatched(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok || msg.State != model.MessageStatePending {
		return false, nil
	}
	msg.State = model.MessageStateDispatched
	return true, nil
}

func (s *memStore) MarkHeard(id uuid.UUID) (*model.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
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

func (s *memStore) DeleteByID(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// memDevices is an in-memory service.DeviceStore
type memDevices struct {
	mu      sync.Mutex
	devices map[string]*model.Device
}

func newMemDevices() *memDevices {
	return &memDevices{devices: make(map[string]*model.Device)}
}

func (s *memDevices) Upsert(deviceID, wifiSSID string) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[deviceID]
	if !ok {
		device = &model.Device{ID: uuid.New(), DeviceID: deviceID}
		s.devices[deviceID] = device
	}
	device.WifiSSID = wifiSSID
	device.Online = true
	device.LastSeen = time.Now()
	cp := *device
	return &cp, nil
}

func (s *memDevices) FindByDeviceID(deviceID string) (*model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[deviceID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *device
	return &cp, nil
}

func (s *memDevices) TouchLastSeen(deviceID string) error   { return nil }
func (s *memDevices) UpdateOnlineStatus(string, bool) error { return nil }

func (s *memDevices) List() ([]model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Device{}
	for _, device := range s.devices {
		out = append(out, *device)
	}
	return out, nil
}

// nullEmitter drops socket events
type nullEmitter struct{}

func (nullEmitter) EmitToRoom(string, *model.WSEvent) {}
func (nullEmitter) Broadcast(*model.WSEvent)          {}

// memStorage is an in-memory storage.Storage that hands back fake URLs
type memStorage struct{}

func (memStorage) Upload(_ context.Context, _ multipart.File, header *multipart.FileHeader, folder string) (*storage.UploadResult, error) {
	url := "http://store/" + folder + "/" + header.Filename
	return &storage.UploadResult{URL: url, Key: folder + "/" + header.Filename, FileName: header.Filename, FileSize: header.Size}, nil
}

func (memStorage) Delete(context.Context, string) error  { return nil }
func (memStorage) GetPublicURL(objectName string) string { return "http://store/" + objectName }

// newTestRouter wires the handlers over in-memory collaborators
func newTestRouter(t *testing.T) (*gin.Engine, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	devices := newMemDevices()
	dispatcher := service.NewDispatcher(nil, nullEmitter{}, "emobox", "")
	scheduler := service.NewScheduler(store, dispatcher)
	t.Cleanup(scheduler.Stop)
	svc := service.NewMessageService(store, devices, scheduler, dispatcher, nullEmitter{})

	messageHandler := NewMessageHandler(svc, memStorage{})
	deviceHandler := NewDeviceHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/messages", messageHandler.CreateMessage)
	api.GET("/messages", messageHandler.ListMessages)
	api.POST("/alarms", messageHandler.CreateAlarm)
	api.GET("/alarms", messageHandler.ListAlarms)
	api.DELETE("/alarms/:id", messageHandler.DeleteAlarm)
	api.POST("/device/register", deviceHandler.Register)
	api.GET("/device/:deviceId/poll", deviceHandler.Poll)
	api.POST("/device/:deviceId/ack", deviceHandler.Acknowledge)
	api.GET("/devices", deviceHandler.ListDevices)

	return router, store
}

// voiceForm builds a multipart body with a voice file plus extra fields
func voiceForm(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if filename != "" {
		part, err := writer.CreateFormFile("voice", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-audio-bytes"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func bytesBuffer(b []byte) *bytes.Buffer { return bytes.NewBuffer(b) }

func doRequest(router *gin.Engine, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
