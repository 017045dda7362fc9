package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	service reservation.UseCase
	loc     *time.Location
}

type availabilityQuery struct {
	RoomTypeID int64  `form:"room_type_id"`
	CheckIn    string `form:"check_in"`
	CheckOut   string `form:"check_out"`
	Adults     int    `form:"adults,default=1"`
	Children   int    `form:"children"`
}

func NewAvailabilityHandler(service reservation.UseCase, loc *time.Location) *AvailabilityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityHandler{service: service, loc: loc}
}

func (h *AvailabilityHandler) Register(router *gin.RouterGroup) {
	router.GET("/accommodation", h.accommodation)
}

func (h *AvailabilityHandler) accommodation(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	checkIn, err := parseDate("check_in", q.CheckIn, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	checkOut, err := parseDate("check_out", q.CheckOut, h.loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CheckAccommodationAvailability(c.Request.Context(), reservation.AvailabilityQuery{
		RoomTypeID: q.RoomTypeID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     q.Adults,
		Children:   q.Children,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
