package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/service"
	"github.com/emobox/emobox-api/pkg/storage"
)

// Max upload size for a voice clip: 10MB
const maxUploadSize = 10 << 20

// MessageHandler handles message and alarm HTTP endpoints
type MessageHandler struct {
	messageService *service.MessageService
	storage        storage.Storage
}

func NewMessageHandler(messageService *service.MessageService, store storage.Storage) *MessageHandler {
	return &MessageHandler{messageService: messageService, storage: store}
}

// ownerFromContext returns the authenticated principal, if any. Anonymous
// creation is allowed; the owner is then nil.
func ownerFromContext(c *gin.Context) *uuid.UUID {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return nil
}

// uploadVoice stores the multipart "voice" file and returns its public URL.
// The caller must have capped the request body before parsing the form.
func (h *MessageHandler) uploadVoice(c *gin.Context) (string, bool) {
	file, header, err := c.Request.FormFile("voice")
	if err != nil {
		if err.Error() == "http: request body too large" {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "Voice clip too large (max 10MB)"})
			return "", false
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Voice clip is required", Message: err.Error()})
		return "", false
	}
	defer file.Close()

	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "Audio storage unavailable"})
		return "", false
	}

	result, err := h.storage.Upload(c.Request.Context(), file, header, "voices")
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to store voice clip", Message: err.Error()})
		return "", false
	}
	return result.URL, true
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(c *gin.Context, err error) {
	if ve, ok := model.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Validation failed", Message: ve.Error()})
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal error", Message: err.Error()})
}

// CreateMessage godoc
// @Summary Send a realtime voice message
// @Description Upload a voice clip and push it to the target device immediately. Delivery falls back to device polling if pushes fail.
// @Tags Messages
// @Accept multipart/form-data
// @Produce json
// @Param voice formData file true "Voice clip (webm/ogg/mp3/wav)"
// @Param title formData string false "Display title"
// @Param target_device formData string false "Device id (defaults to broadcast)"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var form model.CreateMessageForm
	_ = c.ShouldBind(&form)

	audioURL, ok := h.uploadVoice(c)
	if !ok {
		return
	}

	msg, err := h.messageService.CreateRealtime(ownerFromContext(c), form.Title, form.TargetDevice, audioURL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// CreateAlarm godoc
// @Summary Schedule a spoken alarm
// @Description Upload a voice clip and schedule it for a future instant. Accepts either trigger_at (RFC3339) or separate date + time fields.
// @Tags Alarms
// @Accept multipart/form-data
// @Produce json
// @Param voice formData file true "Voice clip"
// @Param title formData string false "Display title"
// @Param date formData string false "Date (2006-01-02)"
// @Param time formData string false "Time (15:04)"
// @Param trigger_at formData string false "RFC3339 instant, wins over date+time"
// @Param target_device formData string false "Device id (defaults to broadcast)"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Router /alarms [post]
func (h *MessageHandler) CreateAlarm(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var form model.CreateAlarmForm
	_ = c.ShouldBind(&form)

	triggerAt, err := service.ParseTriggerAt(form.TriggerAt, form.Date, form.Time)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	audioURL, ok := h.uploadVoice(c)
	if !ok {
		return
	}

	msg, err := h.messageService.CreateScheduled(ownerFromContext(c), form.Title, form.TargetDevice, audioURL, triggerAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages godoc
// @Summary List messages
// @Description Newest first. Scoped to the authenticated owner when a token is presented.
// @Tags Messages
// @Produce json
// @Success 200 {array} model.Message
// @Router /messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messageService.List(ownerFromContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// ListAlarms godoc
// @Summary List scheduled alarms
// @Tags Alarms
// @Produce json
// @Success 200 {array} model.Message
// @Router /alarms [get]
func (h *MessageHandler) ListAlarms(c *gin.Context) {
	alarms, err := h.messageService.ListAlarms(ownerFromContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to list alarms"})
		return
	}
	c.JSON(http.StatusOK, alarms)
}

// DeleteAlarm godoc
// @Summary Delete an alarm
// @Description Removes the record and disarms its timer if one is armed.
// @Tags Alarms
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /alarms/{id} [delete]
func (h *MessageHandler) DeleteAlarm(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid alarm ID"})
		return
	}

	if err := h.messageService.DeleteAlarm(id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Success: true})
}
