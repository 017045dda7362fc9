package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ReservationHandler struct {
	service reservation.UseCase
	loc     *time.Location
}

type accommodationRequest struct {
	GuestID         int64  `json:"guest_id"`
	HotelID         int64  `json:"hotel_id"`
	RoomTypeID      int64  `json:"room_type_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Adults          int    `json:"adults"`
	Children        int    `json:"children"`
	SpecialRequests string `json:"special_requests"`
	GuestName       string `json:"guest_name"`
	Source          string `json:"source"`
}

type activityRequest struct {
	GuestID          int64    `json:"guest_id"`
	ActivityID       int64    `json:"activity_id"`
	ScheduleID       int64    `json:"schedule_id"`
	Participants     int      `json:"participants"`
	ParticipantNames []string `json:"participant_names"`
	EmergencyContact string   `json:"emergency_contact"`
	Source           string   `json:"source"`
}

type packageRequest struct {
	GuestID          int64    `json:"guest_id"`
	PackageID        int64    `json:"package_id"`
	StartDate        string   `json:"start_date"`
	Participants     int      `json:"participants"`
	ParticipantNames []string `json:"participant_names"`
	Source           string   `json:"source"`
}

type lineItemResponse struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Details   gin.H           `json:"details,omitempty"`
}

type reservationResponse struct {
	ID               int64              `json:"id"`
	ConfirmationCode string             `json:"confirmation_code"`
	GuestID          int64              `json:"guest_id"`
	Status           string             `json:"status"`
	CheckIn          *string            `json:"check_in,omitempty"`
	CheckOut         *string            `json:"check_out,omitempty"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	Currency         string             `json:"currency"`
	Source           string             `json:"source"`
	Notes            string             `json:"notes,omitempty"`
	Items            []lineItemResponse `json:"items"`
}

// NewReservationHandler parses bare dates in loc; nil means UTC.
func NewReservationHandler(service reservation.UseCase, loc *time.Location) *ReservationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationHandler{service: service, loc: loc}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/accommodation", h.createAccommodation)
	router.POST("/activity", h.createActivity)
	router.POST("/package", h.createPackage)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
}

func (h *ReservationHandler) createAccommodation(c *gin.Context) {
	var req accommodationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	checkIn, err := parseDate("check_in", req.CheckIn, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	checkOut, err := parseDate("check_out", req.CheckOut, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.CreateAccommodationReservation(c.Request.Context(), reservation.AccommodationRequest{
		GuestID:         req.GuestID,
		HotelID:         req.HotelID,
		RoomTypeID:      req.RoomTypeID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Adults:          req.Adults,
		Children:        req.Children,
		SpecialRequests: req.SpecialRequests,
		GuestName:       req.GuestName,
		Source:          req.Source,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) createActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.CreateActivityReservation(c.Request.Context(), reservation.ActivityRequest{
		GuestID:          req.GuestID,
		ActivityID:       req.ActivityID,
		ScheduleID:       req.ScheduleID,
		Participants:     req.Participants,
		ParticipantNames: req.ParticipantNames,
		EmergencyContact: req.EmergencyContact,
		Source:           req.Source,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) createPackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := parseDate("start_date", req.StartDate, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.CreatePackageReservation(c.Request.Context(), reservation.PackageRequest{
		GuestID:          req.GuestID,
		PackageID:        req.PackageID,
		StartDate:        start,
		Participants:     req.Participants,
		ParticipantNames: req.ParticipantNames,
		Source:           req.Source,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.service.GetReservation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.service.CancelReservation(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func toReservationResponse(res *domain.Reservation) reservationResponse {
	out := reservationResponse{
		ID:               res.ID,
		ConfirmationCode: res.ConfirmationCode,
		GuestID:          res.GuestID,
		Status:           string(res.Status),
		CheckIn:          formatDate(res.CheckIn),
		CheckOut:         formatDate(res.CheckOut),
		TotalAmount:      res.TotalAmount,
		Currency:         res.Currency,
		Source:           res.Source,
		Notes:            res.Notes,
		Items:            make([]lineItemResponse, 0, len(res.Items)),
	}
	for _, item := range res.Items {
		out.Items = append(out.Items, lineItemResponse{
			ID:        item.ID,
			Type:      string(item.Type()),
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    item.Amount,
			Metadata:  item.Metadata,
			Details:   detailsOf(item.Detail),
		})
	}
	return out
}

func detailsOf(detail domain.LineItemDetail) gin.H {
	switch d := detail.(type) {
	case *domain.AccommodationStay:
		return gin.H{
			"hotel_id":     d.HotelID,
			"room_type_id": d.RoomTypeID,
			"room_id":      d.RoomID,
			"adults":       d.Adults,
			"children":     d.Children,
			"check_in":     d.CheckIn.Format(time.DateOnly),
			"check_out":    d.CheckOut.Format(time.DateOnly),
			"nights":       d.Nights,
		}
	case *domain.ActivityBooking:
		return gin.H{
			"activity_id":   d.ActivityID,
			"schedule_id":   d.ScheduleID,
			"activity_date": d.ActivityDate.Format(time.DateOnly),
			"start_time":    d.StartTime,
			"participants":  d.Participants,
		}
	case *domain.PackageBooking:
		return gin.H{
			"package_id": d.PackageID,
			"start_date": d.StartDate.Format(time.DateOnly),
			"end_date":   d.EndDate.Format(time.DateOnly),
			"pax":        d.Pax,
		}
	default:
		return nil
	}
}
