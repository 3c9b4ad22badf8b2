package httpgin

import (
	"fmt"
	"time"

	"github.com/kirinyoku/ferry-go/internal/domain"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
	"github.com/kirinyoku/ferry-go/internal/service/schedule"
)

// Dates travel as YYYY-MM-DD strings, times of day as "HH:MM".

type CreateTemplateRequest struct {
	FromStationID int64                `json:"from_station_id" binding:"required"`
	ToStationID   int64                `json:"to_station_id" binding:"required"`
	DayOfWeek     *int                 `json:"day_of_week" binding:"required,min=0,max=6"`
	DepartureTime domain.TimeOfDay     `json:"departure_time"`
	ArrivalTime   domain.TimeOfDay     `json:"arrival_time"`
	VehicleType   seatmap.VehicleType  `json:"vehicle_type" binding:"required"`
	Capacity      domain.ClassCapacity `json:"capacity"`
	IsActive      *bool                `json:"is_active"`
}

func (r CreateTemplateRequest) toDomain() domain.ScheduleTemplate {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return domain.ScheduleTemplate{
		Route:         domain.Route{FromStationID: r.FromStationID, ToStationID: r.ToStationID},
		DayOfWeek:     time.Weekday(*r.DayOfWeek),
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		VehicleType:   r.VehicleType,
		Capacity:      r.Capacity,
		IsActive:      active,
	}
}

type CreateTemplateResponse struct {
	Template  *domain.ScheduleTemplate `json:"template"`
	Generated int                      `json:"generated"`
}

// UpdateTemplateRequest patches a template and regenerates its voyages in
// [start_date, end_date].
type UpdateTemplateRequest struct {
	FromStationID *int64                `json:"from_station_id"`
	ToStationID   *int64                `json:"to_station_id"`
	DayOfWeek     *int                  `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	DepartureTime *domain.TimeOfDay     `json:"departure_time"`
	ArrivalTime   *domain.TimeOfDay     `json:"arrival_time"`
	VehicleType   *seatmap.VehicleType  `json:"vehicle_type"`
	Capacity      *domain.ClassCapacity `json:"capacity"`
	IsActive      *bool                 `json:"is_active"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date"`
}

// patch merges a partial route change with the template's current route.
func (r UpdateTemplateRequest) patch(cur domain.Route) domain.TemplatePatch {
	p := domain.TemplatePatch{
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		VehicleType:   r.VehicleType,
		Capacity:      r.Capacity,
		IsActive:      r.IsActive,
	}
	if r.FromStationID != nil || r.ToStationID != nil {
		route := cur
		if r.FromStationID != nil {
			route.FromStationID = *r.FromStationID
		}
		if r.ToStationID != nil {
			route.ToStationID = *r.ToStationID
		}
		p.Route = &route
	}
	if r.DayOfWeek != nil {
		d := time.Weekday(*r.DayOfWeek)
		p.DayOfWeek = &d
	}
	return p
}

type UpdateTemplateResponse struct {
	Template  *domain.ScheduleTemplate `json:"template"`
	Generated int                      `json:"generated"`
}

type DateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type FromDateRequest struct {
	FromDate string `json:"from_date"`
}

type CancelRouteRequest struct {
	FromStationID int64  `json:"from_station_id" binding:"required"`
	ToStationID   int64  `json:"to_station_id" binding:"required"`
	FromDate      string `json:"from_date"`
}

type CreateVoyageRequest struct {
	FromStationID int64                `json:"from_station_id" binding:"required"`
	ToStationID   int64                `json:"to_station_id" binding:"required"`
	DepartureDate string               `json:"departure_date" binding:"required"`
	DepartureTime domain.TimeOfDay     `json:"departure_time"`
	ArrivalTime   domain.TimeOfDay     `json:"arrival_time"`
	VehicleType   seatmap.VehicleType  `json:"vehicle_type" binding:"required"`
	Capacity      domain.ClassCapacity `json:"capacity"`
}

func (r CreateVoyageRequest) toInput() (schedule.VoyageInput, error) {
	date, err := domain.ParseDate(r.DepartureDate)
	if err != nil {
		return schedule.VoyageInput{}, err
	}
	return schedule.VoyageInput{
		Route:         domain.Route{FromStationID: r.FromStationID, ToStationID: r.ToStationID},
		DepartureDate: date,
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		VehicleType:   r.VehicleType,
		Capacity:      r.Capacity,
	}, nil
}

type UpdateVoyageRequest struct {
	DepartureDate *string               `json:"departure_date"`
	DepartureTime *domain.TimeOfDay     `json:"departure_time"`
	ArrivalTime   *domain.TimeOfDay     `json:"arrival_time"`
	VehicleType   *seatmap.VehicleType  `json:"vehicle_type"`
	Capacity      *domain.ClassCapacity `json:"capacity"`
}

func (r UpdateVoyageRequest) toPatch() (domain.VoyagePatch, error) {
	p := domain.VoyagePatch{
		DepartureTime: r.DepartureTime,
		ArrivalTime:   r.ArrivalTime,
		VehicleType:   r.VehicleType,
		Capacity:      r.Capacity,
	}
	if r.DepartureDate != nil {
		d, err := domain.ParseDate(*r.DepartureDate)
		if err != nil {
			return p, err
		}
		p.DepartureDate = &d
	}
	return p, nil
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type GeneratedResponse struct {
	Generated int `json:"generated"`
}

type ErrorResponse struct {
	Error string          `json:"error"`
	Seat  *domain.SeatRef `json:"seat,omitempty"`
}

// optionalDate parses s unless it is empty, in which case it returns the zero
// time so the service applies its default.
func optionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s", field)
	}
	return d, nil
}
