package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/emobox/emobox-api/internal/service"
)

// DeviceHandler serves the device-facing endpoints: registration, the
// polling inbox and acknowledgment.
type DeviceHandler struct {
	messageService *service.MessageService
}

func NewDeviceHandler(messageService *service.MessageService) *DeviceHandler {
	return &DeviceHandler{messageService: messageService}
}

// Register godoc
// @Summary Register a device
// @Description Called by the ESP32 on boot. Upserts the registration and marks the device online.
// @Tags Devices
// @Accept json
// @Produce json
// @Param body body model.RegisterDeviceRequest true "Device registration"
// @Success 200 {object} model.Device
// @Failure 400 {object} model.ErrorResponse
// @Router /device/register [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	device, err := h.messageService.RegisterDevice(req.DeviceID, req.WifiSSID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

// Poll godoc
// @Summary Poll for the next undelivered message
// @Description The pull channel: returns the next realtime message or due alarm for this device (or broadcast). Never mutates message state.
// @Tags Devices
// @Produce json
// @Param deviceId path string true "Device ID"
// @Success 200 {object} model.PollResponse
// @Router /device/{deviceId}/poll [get]
func (h *DeviceHandler) Poll(c *gin.Context) {
	deviceID := c.Param("deviceId")

	resp, err := h.messageService.NextForDevice(deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to query inbox"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Acknowledge godoc
// @Summary Acknowledge a message
// @Description Called when the device finished playing the clip (or the user pressed the button). Idempotent.
// @Tags Devices
// @Accept json
// @Produce json
// @Param deviceId path string true "Device ID"
// @Param body body model.AcknowledgeRequest true "Acknowledgment"
// @Success 200 {object} model.Message
// @Failure 404 {object} model.ErrorResponse
// @Router /device/{deviceId}/ack [post]
func (h *DeviceHandler) Acknowledge(c *gin.Context) {
	deviceID := c.Param("deviceId")

	var req model.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	msg, err := h.messageService.Acknowledge(req.MessageID, deviceID, req.Source)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListDevices godoc
// @Summary List registered devices
// @Tags Devices
// @Produce json
// @Success 200 {array} model.Device
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.messageService.ListDevices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to list devices"})
		return
	}
	c.JSON(http.StatusOK, devices)
}
