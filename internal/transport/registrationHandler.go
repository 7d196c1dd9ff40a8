package transport

import (
	"net/http"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/gin-gonic/gin"
)

type RegistrationHandler struct {
	admissionService service.AdmissionService
}

func NewRegistrationHandler(admissionService service.AdmissionService) *RegistrationHandler {
	return &RegistrationHandler{admissionService: admissionService}
}

// RegisterRequest is the body of POST /resources/:id/registrations.
type RegisterRequest struct {
	PartySize int            `json:"partySize"`
	Contact   entity.Contact `json:"contact"`
}

type RegisterResponse struct {
	RegistrationID string                    `json:"registrationId"`
	Status         entity.RegistrationStatus `json:"status"`
}

func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reg, err := h.admissionService.Register(c.Request.Context(), &service.RegisterRequest{
		ResourceID: c.Param("id"),
		PartySize:  req.PartySize,
		Contact:    req.Contact,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{RegistrationID: reg.ID, Status: reg.Status})
}

func (h *RegistrationHandler) Capacity(c *gin.Context) {
	snapshot, err := h.admissionService.Capacity(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	regs, err := h.admissionService.ListRegistrations(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}

func (h *RegistrationHandler) Promote(c *gin.Context) {
	promoted, err := h.admissionService.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

func (h *RegistrationHandler) Cancel(c *gin.Context) {
	result, err := h.admissionService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
