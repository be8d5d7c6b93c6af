// Package handler provides the HTTP surface of the chat bounded context.
package handler

import (
	"net/http"

	"support_portal_backend/internal/chat/service"
	"support_portal_backend/internal/chat/transport"
	"support_portal_backend/platform/httpkit"
	"support_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for visitor sessions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new chat handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions/:id", h.GetSession)
	rg.POST("/sessions/:id/close", h.CloseSession)
	rg.GET("/visitors/:id", h.GetVisitor)
}

// GetSession handles GET /api/v1/chat/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	session, err := h.svc.GetSession(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewSessionResponse(session))
}

// CloseSession handles POST /api/v1/chat/sessions/:id/close
func (h *Handler) CloseSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sendNotification := true
	if req.SendNotification != nil {
		sendNotification = *req.SendNotification
	}

	session, err := h.svc.CloseSession(c.Request.Context(), id, service.CloseParams{
		ClosedByStaffID:   req.ClosedByStaffID,
		ClosedByStaffName: req.ClosedByStaffName,
		SendNotification:  sendNotification,
		Reason:            req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewSessionResponse(session))
}

// GetVisitor handles GET /api/v1/chat/visitors/:id
func (h *Handler) GetVisitor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	visitor, err := h.svc.GetVisitor(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewVisitorResponse(visitor))
}
