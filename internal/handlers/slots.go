package handlers

import (
	"net/http"

	"futsal/internal/models"

	"github.com/gin-gonic/gin"
)

// ListGroundSlots - GET /api/grounds/:id/slots?date=YYYY-MM-DD
// Получить свободные слоты поля на дату
func (h *Handlers) ListGroundSlots(c *gin.Context) {
	groundID, ok := pathID(c, "id")
	if !ok {
		return
	}
	date, ok := slotDate(c)
	if !ok {
		return
	}

	slots, err := h.reservations.ListAvailable(c.Request.Context(), groundID, date)
	if err != nil {
		handleServiceError(c, err, "list slots")
		return
	}

	c.JSON(http.StatusOK, models.ToListSlotsResponse(slots))
}

// ListVenueSlots - GET /api/venues/:id/slots?date=YYYY-MM-DD
// Получить свободные слоты всех полей площадки
func (h *Handlers) ListVenueSlots(c *gin.Context) {
	venueID, ok := pathID(c, "id")
	if !ok {
		return
	}
	date, ok := slotDate(c)
	if !ok {
		return
	}

	response, err := h.venues.AvailableSlots(c.Request.Context(), venueID, date)
	if err != nil {
		handleServiceError(c, err, "list venue slots")
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchVenues - GET /api/venues?query=
// Поиск площадок по названию и адресу
func (h *Handlers) SearchVenues(c *gin.Context) {
	var query models.SearchVenuesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	venues, err := h.venues.Search(c.Request.Context(), query.Query, query.Limit)
	if err != nil {
		handleServiceError(c, err, "search venues")
		return
	}

	response := make(models.ListVenuesResponse, 0, len(venues))
	for _, v := range venues {
		response = append(response, models.ListVenuesResponseItem{
			ID:       v.ID,
			Name:     v.Name,
			Location: v.Location,
		})
	}

	c.JSON(http.StatusOK, response)
}
