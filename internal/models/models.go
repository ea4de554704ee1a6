package models

// DateLayout - формат даты слота в запросах и ответах
const DateLayout = "2006-01-02"

// ListSlotsQuery - параметры запроса списка свободных слотов
type ListSlotsQuery struct {
	Date string `form:"date" binding:"required,slotdate"`
}

// ListSlotsResponseItem - элемент списка слотов
type ListSlotsResponseItem struct {
	ID        int64  `json:"id"`
	GroundID  int64  `json:"ground_id"`
	Date      string `json:"date"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
}

// ListSlotsResponse - список слотов
type ListSlotsResponse []ListSlotsResponseItem

// GroundSlots - свободные слоты одного поля площадки
type GroundSlots struct {
	GroundID     int64             `json:"ground_id"`
	GroundName   string            `json:"ground_name"`
	PricePerHour int64             `json:"price_per_hour"`
	Slots        ListSlotsResponse `json:"slots"`
}

// VenueSlotsResponse - свободные слоты всех полей площадки на дату
type VenueSlotsResponse struct {
	VenueID int64         `json:"venue_id"`
	Date    string        `json:"date"`
	Grounds []GroundSlots `json:"grounds"`
}

// SearchVenuesQuery - параметры поиска площадок
type SearchVenuesQuery struct {
	Query string `form:"query"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListVenuesResponseItem - элемент списка площадок
type ListVenuesResponseItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ListVenuesResponse - список площадок
type ListVenuesResponse []ListVenuesResponseItem

// ReserveBookingRequest - бронирование с автоматическим выбором пути (бесплатно или оплата)
type ReserveBookingRequest struct {
	GroundID int64   `json:"ground_id" binding:"required,gt=0"`
	SlotIDs  []int64 `json:"slot_ids" binding:"required,min=1,dive,gt=0"`
	TeamID   *int64  `json:"team_id,omitempty"`
	Amount   int64   `json:"amount" binding:"gte=0"`
}

// FreeBookingRequest - бронирование за баллы лояльности
type FreeBookingRequest struct {
	GroundID int64  `json:"ground_id" binding:"required,gt=0"`
	SlotID   int64  `json:"slot_id" binding:"required,gt=0"`
	TeamID   *int64 `json:"team_id,omitempty"`
}

// InitiatePaymentRequest - модель для инициации платежа
type InitiatePaymentRequest struct {
	GroundID int64   `json:"ground_id" binding:"required,gt=0"`
	SlotIDs  []int64 `json:"slot_ids" binding:"required,min=1,dive,gt=0"`
	TeamID   *int64  `json:"team_id,omitempty"`
	Amount   int64   `json:"amount" binding:"required,gt=0"`
}

// PaymentCallbackQuery - параметры возврата от платежного шлюза
type PaymentCallbackQuery struct {
	PIDX            string `form:"pidx" binding:"required"`
	PurchaseOrderID string `form:"purchase_order_id" binding:"required"`
	Status          string `form:"status"`
}

// ListBookingsResponseItem - элемент списка бронирований
type ListBookingsResponseItem struct {
	ID            int64  `json:"id"`
	SlotID        int64  `json:"slot_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountPaid    int64  `json:"amount_paid"`
	IsFree        bool   `json:"is_free"`
}

// ListBookingsResponse - список бронирований
type ListBookingsResponse []ListBookingsResponseItem

// ToListSlotsResponse converts slots into the API shape
func ToListSlotsResponse(slots []Slot) ListSlotsResponse {
	resp := make(ListSlotsResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, ListSlotsResponseItem{
			ID:        s.ID,
			GroundID:  s.GroundID,
			Date:      s.Date.Format(DateLayout),
			StartHour: s.StartHour,
			EndHour:   s.EndHour,
		})
	}
	return resp
}
