package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/apperror"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/shopspring/decimal"
)

type AccommodationRequest struct {
	GuestID         int64     `json:"guest_id"`
	HotelID         int64     `json:"hotel_id"`
	RoomTypeID      int64     `json:"room_type_id"`
	CheckIn         time.Time `json:"check_in"`
	CheckOut        time.Time `json:"check_out"`
	Adults          int       `json:"adults"`
	Children        int       `json:"children"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	GuestName       string    `json:"guest_name,omitempty"`
	Source          string    `json:"source,omitempty"`
}

type ActivityRequest struct {
	GuestID          int64    `json:"guest_id"`
	ActivityID       int64    `json:"activity_id"`
	ScheduleID       int64    `json:"schedule_id"`
	Participants     int      `json:"participants"`
	ParticipantNames []string `json:"participant_names,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	Source           string   `json:"source,omitempty"`
}

type PackageRequest struct {
	GuestID          int64     `json:"guest_id"`
	PackageID        int64     `json:"package_id"`
	StartDate        time.Time `json:"start_date"`
	Participants     int       `json:"participants"`
	ParticipantNames []string  `json:"participant_names,omitempty"`
	Source           string    `json:"source,omitempty"`
}

type AvailabilityQuery struct {
	RoomTypeID int64     `json:"room_type_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Adults     int       `json:"adults"`
	Children   int       `json:"children"`
}

type AvailabilityResult struct {
	Available      bool   `json:"available"`
	Message        string `json:"message"`
	RoomsAvailable int    `json:"rooms_available"`
}

const defaultSource = "DIRECT"

func sourceOr(source string) string {
	if source == "" {
		return defaultSource
	}
	return source
}

func (s *ReservationService) stayWindow(checkIn, checkOut time.Time) (domain.StayWindow, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return domain.StayWindow{}, apperror.Validation("check_in and check_out are required")
	}
	w, err := domain.NewStayWindow(s.dateOf(checkIn), s.dateOf(checkOut))
	if err != nil {
		return domain.StayWindow{}, apperror.Validation("%s", err.Error())
	}
	return w, nil
}

func validateGuests(adults, children int) error {
	if adults < 1 {
		return apperror.Validation("at least one adult is required")
	}
	if children < 0 {
		return apperror.Validation("children must not be negative")
	}
	return nil
}

func checkRoomCapacity(rt *domain.RoomType, adults, children int) error {
	if adults > rt.MaxAdults {
		return apperror.CapacityExceeded("room type %d allows at most %d adults, requested %d", rt.ID, rt.MaxAdults, adults)
	}
	if children > rt.MaxChildren {
		return apperror.CapacityExceeded("room type %d allows at most %d children, requested %d", rt.ID, rt.MaxChildren, children)
	}
	return nil
}

func validateAccommodation(req AccommodationRequest) error {
	if req.GuestID <= 0 {
		return apperror.Validation("guest_id is required")
	}
	if req.HotelID <= 0 {
		return apperror.Validation("hotel_id is required")
	}
	if req.RoomTypeID <= 0 {
		return apperror.Validation("room_type_id is required")
	}
	return validateGuests(req.Adults, req.Children)
}

func (s *ReservationService) CreateAccommodationReservation(ctx context.Context, req AccommodationRequest) (res *domain.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "CreateAccommodationReservation")
	defer func(started time.Time) { s.observe(span, domain.ItemTypeAccommodation, started, res, err) }(time.Now())

	if err := validateAccommodation(req); err != nil {
		return nil, err
	}
	window, err := s.stayWindow(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	hotel, err := s.catalog.GetHotel(ctx, req.HotelID)
	if err != nil {
		return nil, s.lookupError(err, "hotel", req.HotelID)
	}
	if !hotel.Active {
		return nil, apperror.NotFound("hotel", req.HotelID)
	}
	roomType, err := s.catalog.GetRoomType(ctx, req.RoomTypeID)
	if err != nil {
		return nil, s.lookupError(err, "room type", req.RoomTypeID)
	}
	if roomType.HotelID != hotel.ID || !roomType.Active {
		return nil, apperror.NotFound("room type", req.RoomTypeID)
	}
	if err := checkRoomCapacity(roomType, req.Adults, req.Children); err != nil {
		return nil, err
	}

	rooms, err := s.catalog.ListActiveRooms(ctx, roomType.ID)
	if err != nil {
		return nil, persistenceError(err, "failed to list rooms")
	}

	nights := window.Nights()
	amount := roomType.BaseRate.Mul(decimal.NewFromInt(int64(nights)))
	checkIn, checkOut := window.CheckIn, window.CheckOut

	rejected := make(map[int64]bool)
	for {
		room, err := s.resolver.FirstAvailable(ctx, rooms, window, rejected)
		if err != nil {
			return nil, persistenceError(err, "failed to resolve room availability")
		}
		if room == nil {
			return nil, apperror.NoAvailability("no %s room is free from %s to %s",
				roomType.Name, checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly))
		}

		res = &domain.Reservation{
			GuestID:     req.GuestID,
			Status:      domain.ReservationStatusPending,
			CheckIn:     &checkIn,
			CheckOut:    &checkOut,
			TotalAmount: amount,
			Currency:    s.currencyOr(roomType.Currency),
			Source:      sourceOr(req.Source),
			Notes:       req.SpecialRequests,
		}
		err = s.insertReservation(ctx, res, func(ctx context.Context, tx repository.ReservationTx) error {
			stay := &domain.AccommodationStay{
				HotelID:    hotel.ID,
				RoomTypeID: roomType.ID,
				RoomID:     room.ID,
				Adults:     req.Adults,
				Children:   req.Children,
				CheckIn:    checkIn,
				CheckOut:   checkOut,
				Nights:     nights,
				GuestName:  req.GuestName,
			}
			item := domain.LineItem{
				ReservationID: res.ID,
				Title:         fmt.Sprintf("%s, %s room %s", hotel.Name, roomType.Name, room.Code),
				Quantity:      nights,
				UnitPrice:     roomType.BaseRate,
				Amount:        amount,
				Metadata:      map[string]any{"room_code": room.Code},
				Detail:        stay,
			}
			if err := tx.InsertLineItem(ctx, &item); err != nil {
				return err
			}
			stay.LineItemID = item.ID
			if err := tx.InsertAccommodationStay(ctx, stay); err != nil {
				return err
			}
			if err := s.locker.Lock(ctx, tx, room.ID, window, item.ID); err != nil {
				return err
			}
			res.Items = append(res.Items, item)
			return nil
		})
		if errors.Is(err, repository.ErrInventoryConflict) {
			s.metrics.RecordInventoryConflict()
			s.logger.Debug().Int64("room_id", room.ID).Msg("room taken at write time, trying next candidate")
			rejected[room.ID] = true
			continue
		}
		if err != nil {
			return nil, persistenceError(err, "failed to create accommodation reservation")
		}
		break
	}

	s.notify(ctx, notification.EventReservationCreated, res)
	return res, nil
}

func validateActivity(req ActivityRequest) error {
	if req.GuestID <= 0 {
		return apperror.Validation("guest_id is required")
	}
	if req.ActivityID <= 0 {
		return apperror.Validation("activity_id is required")
	}
	if req.ScheduleID <= 0 {
		return apperror.Validation("schedule_id is required")
	}
	if req.Participants < 1 {
		return apperror.Validation("participants must be at least 1")
	}
	if len(req.ParticipantNames) > req.Participants {
		return apperror.Validation("%d participant names given for %d participants", len(req.ParticipantNames), req.Participants)
	}
	return nil
}

func remainingSpots(schedule *domain.ActivitySchedule, booked, requested int) error {
	remaining := schedule.AvailableSpots - booked
	if remaining < 0 {
		remaining = 0
	}
	if requested > remaining {
		return apperror.CapacityExceeded("schedule %d has %d spots remaining, requested %d", schedule.ID, remaining, requested)
	}
	return nil
}

func (s *ReservationService) CreateActivityReservation(ctx context.Context, req ActivityRequest) (res *domain.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "CreateActivityReservation")
	defer func(started time.Time) { s.observe(span, domain.ItemTypeActivity, started, res, err) }(time.Now())

	if err := validateActivity(req); err != nil {
		return nil, err
	}

	activity, err := s.catalog.GetActivity(ctx, req.ActivityID)
	if err != nil {
		return nil, s.lookupError(err, "activity", req.ActivityID)
	}
	if !activity.Active {
		return nil, apperror.NotFound("activity", req.ActivityID)
	}
	schedule, err := s.catalog.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, s.lookupError(err, "schedule", req.ScheduleID)
	}
	if schedule.ActivityID != activity.ID || !schedule.Active {
		return nil, apperror.NotFound("schedule", req.ScheduleID)
	}

	if req.Participants < activity.MinParticipants {
		return nil, apperror.Validation("activity %d needs at least %d participants, requested %d", activity.ID, activity.MinParticipants, req.Participants)
	}
	if activity.MaxParticipants > 0 && req.Participants > activity.MaxParticipants {
		return nil, apperror.CapacityExceeded("activity %d allows at most %d participants, requested %d", activity.ID, activity.MaxParticipants, req.Participants)
	}
	booked, err := s.reservations.ScheduleParticipants(ctx, schedule.ID)
	if err != nil {
		return nil, persistenceError(err, "failed to count schedule participants")
	}
	if err := remainingSpots(schedule, booked, req.Participants); err != nil {
		return nil, err
	}

	unitPrice := schedule.UnitPrice(activity)
	amount := unitPrice.Mul(decimal.NewFromInt(int64(req.Participants)))
	activityDate := domain.DateOf(schedule.Date)

	res = &domain.Reservation{
		GuestID:     req.GuestID,
		Status:      domain.ReservationStatusPending,
		TotalAmount: amount,
		Currency:    s.currencyOr(activity.Currency),
		Source:      sourceOr(req.Source),
	}
	err = s.insertReservation(ctx, res, func(ctx context.Context, tx repository.ReservationTx) error {
		// the pre-check above may be stale; the count under the schedule lock decides
		booked, err := tx.LockSchedule(ctx, schedule.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.NotFound("schedule", schedule.ID)
			}
			return err
		}
		if err := remainingSpots(schedule, booked, req.Participants); err != nil {
			return err
		}

		booking := &domain.ActivityBooking{
			ActivityID:       activity.ID,
			ScheduleID:       schedule.ID,
			ActivityDate:     activityDate,
			StartTime:        schedule.StartTime,
			Participants:     req.Participants,
			ParticipantNames: req.ParticipantNames,
			EmergencyContact: req.EmergencyContact,
		}
		item := domain.LineItem{
			ReservationID: res.ID,
			Title:         fmt.Sprintf("%s on %s %s", activity.Name, activityDate.Format(time.DateOnly), schedule.StartTime),
			Quantity:      req.Participants,
			UnitPrice:     unitPrice,
			Amount:        amount,
			Metadata:      map[string]any{"start_time": schedule.StartTime},
			Detail:        booking,
		}
		if err := tx.InsertLineItem(ctx, &item); err != nil {
			return err
		}
		booking.LineItemID = item.ID
		if err := tx.InsertActivityBooking(ctx, booking); err != nil {
			return err
		}
		res.Items = append(res.Items, item)
		return nil
	})
	if err != nil {
		return nil, persistenceError(err, "failed to create activity reservation")
	}

	s.notify(ctx, notification.EventReservationCreated, res)
	return res, nil
}

func validatePackage(req PackageRequest) error {
	if req.GuestID <= 0 {
		return apperror.Validation("guest_id is required")
	}
	if req.PackageID <= 0 {
		return apperror.Validation("package_id is required")
	}
	if req.StartDate.IsZero() {
		return apperror.Validation("start_date is required")
	}
	if req.Participants < 1 {
		return apperror.Validation("participants must be at least 1")
	}
	if len(req.ParticipantNames) > req.Participants {
		return apperror.Validation("%d participant names given for %d participants", len(req.ParticipantNames), req.Participants)
	}
	return nil
}

// PackageEndDate is the last day of a package starting on start.
func PackageEndDate(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays-1)
}

func (s *ReservationService) CreatePackageReservation(ctx context.Context, req PackageRequest) (res *domain.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "CreatePackageReservation")
	defer func(started time.Time) { s.observe(span, domain.ItemTypePackage, started, res, err) }(time.Now())

	if err := validatePackage(req); err != nil {
		return nil, err
	}

	pkg, err := s.catalog.GetPackage(ctx, req.PackageID)
	if err != nil {
		return nil, s.lookupError(err, "package", req.PackageID)
	}
	if !pkg.Active {
		return nil, apperror.NotFound("package", req.PackageID)
	}
	if pkg.DurationDays < 1 {
		return nil, apperror.Validation("package %d has no duration", pkg.ID)
	}
	if pkg.MaxPax > 0 && req.Participants > pkg.MaxPax {
		return nil, apperror.CapacityExceeded("package %d allows at most %d participants, requested %d", pkg.ID, pkg.MaxPax, req.Participants)
	}

	start := s.dateOf(req.StartDate)
	end := PackageEndDate(start, pkg.DurationDays)

	res = &domain.Reservation{
		GuestID:     req.GuestID,
		Status:      domain.ReservationStatusPending,
		CheckIn:     &start,
		CheckOut:    &end,
		TotalAmount: pkg.BasePrice,
		Currency:    s.currencyOr(pkg.Currency),
		Source:      sourceOr(req.Source),
	}
	err = s.insertReservation(ctx, res, func(ctx context.Context, tx repository.ReservationTx) error {
		booking := &domain.PackageBooking{
			PackageID:        pkg.ID,
			StartDate:        start,
			EndDate:          end,
			Pax:              req.Participants,
			ParticipantNames: req.ParticipantNames,
		}
		item := domain.LineItem{
			ReservationID: res.ID,
			Title:         fmt.Sprintf("%s from %s", pkg.Name, start.Format(time.DateOnly)),
			Quantity:      1,
			UnitPrice:     pkg.BasePrice,
			Amount:        pkg.BasePrice,
			Metadata:      map[string]any{"duration_days": pkg.DurationDays},
			Detail:        booking,
		}
		if err := tx.InsertLineItem(ctx, &item); err != nil {
			return err
		}
		booking.LineItemID = item.ID
		if err := tx.InsertPackageBooking(ctx, booking); err != nil {
			return err
		}
		res.Items = append(res.Items, item)
		return nil
	})
	if err != nil {
		return nil, persistenceError(err, "failed to create package reservation")
	}

	s.notify(ctx, notification.EventReservationCreated, res)
	return res, nil
}

func (s *ReservationService) CheckAccommodationAvailability(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error) {
	ctx, span := s.startSpan(ctx, "CheckAccommodationAvailability")
	defer span.End()

	if q.RoomTypeID <= 0 {
		return nil, apperror.Validation("room_type_id is required")
	}
	if err := validateGuests(q.Adults, q.Children); err != nil {
		return nil, err
	}
	window, err := s.stayWindow(q.CheckIn, q.CheckOut)
	if err != nil {
		return nil, err
	}

	roomType, err := s.catalog.GetRoomType(ctx, q.RoomTypeID)
	if err != nil {
		return nil, s.lookupError(err, "room type", q.RoomTypeID)
	}
	if !roomType.Active {
		return nil, apperror.NotFound("room type", q.RoomTypeID)
	}
	if err := checkRoomCapacity(roomType, q.Adults, q.Children); err != nil {
		return &AvailabilityResult{Available: false, Message: apperror.MessageOf(err)}, nil
	}

	rooms, err := s.catalog.ListActiveRooms(ctx, roomType.ID)
	if err != nil {
		return nil, persistenceError(err, "failed to list rooms")
	}
	free, err := s.resolver.CountAvailable(ctx, rooms, window)
	if err != nil {
		return nil, persistenceError(err, "failed to resolve room availability")
	}

	if free == 0 {
		return &AvailabilityResult{
			Available: false,
			Message: fmt.Sprintf("no %s room is free from %s to %s",
				roomType.Name, window.CheckIn.Format(time.DateOnly), window.CheckOut.Format(time.DateOnly)),
		}, nil
	}
	return &AvailabilityResult{
		Available:      true,
		Message:        fmt.Sprintf("%d room(s) available for %d night(s)", free, window.Nights()),
		RoomsAvailable: free,
	}, nil
}
