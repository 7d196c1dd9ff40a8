package transport

import (
	"fmt"
	"net/http"

	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
	catalogService service.CatalogService
}

func NewBookingHandler(bookingService service.BookingService, catalogService service.CatalogService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, catalogService: catalogService}
}

// venue answers 404 for an unknown venue before the request body or query
// is looked at.
func (h *BookingHandler) venue(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if _, err := h.catalogService.GetVenue(c.Request.Context(), name); err != nil {
		handleError(c, err)
		return "", false
	}
	return name, true
}

// BookingRequest is the body of POST /venues/:name/bookings. Date is
// YYYY-MM-DD and StartTime is HH:MM.
type BookingRequest struct {
	Date          string  `json:"date" binding:"required"`
	StartTime     string  `json:"startTime" binding:"required"`
	DurationHours float64 `json:"durationHours"`
	Requester     string  `json:"requester" binding:"required"`
}

type BookingResponse struct {
	BookingID string               `json:"bookingId"`
	Status    entity.BookingStatus `json:"status"`
}

func (h *BookingHandler) RequestBooking(c *gin.Context) {
	venue, ok := h.venue(c)
	if !ok {
		return
	}

	var req BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	date, err := entity.ParseDate(req.Date)
	if err != nil {
		badRequest(c, err)
		return
	}
	start, err := entity.ParseClockTime(req.StartTime)
	if err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookingService.RequestBooking(c.Request.Context(), &service.BookingRequest{
		Venue:         venue,
		Date:          date,
		StartTime:     start,
		DurationHours: req.DurationHours,
		Requester:     req.Requester,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, BookingResponse{BookingID: booking.ID, Status: booking.Status})
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	venue, ok := h.venue(c)
	if !ok {
		return
	}

	raw := c.Query("date")
	if raw == "" {
		badRequest(c, fmt.Errorf("date query parameter is required"))
		return
	}
	date, err := entity.ParseDate(raw)
	if err != nil {
		badRequest(c, err)
		return
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), venue, date)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}
