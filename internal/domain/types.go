package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/ferry-go/internal/seatmap"
)

type VoyageStatus string

const (
	VoyageActive    VoyageStatus = "active"
	VoyageCancelled VoyageStatus = "cancelled"
	VoyageRetired   VoyageStatus = "retired"
)

// Provenance records who owns a voyage's schedule fields.
type Provenance string

const (
	// ProvenanceTemplate voyages follow their template and may be regenerated.
	ProvenanceTemplate Provenance = "template"
	// ProvenanceOperator voyages were edited or created by an operator and are
	// exempt from bulk template propagation.
	ProvenanceOperator Provenance = "operator"
)

type Station struct {
	ID    int64  `json:"id"`
	City  string `json:"city"`
	Title string `json:"title"`
}

// ClassCapacity is the number of sellable seats per fare class.
type ClassCapacity struct {
	Promo    int `json:"promo"`
	Economy  int `json:"economy"`
	Business int `json:"business"`
}

func (c ClassCapacity) Of(class seatmap.Class) int {
	switch class {
	case seatmap.Promo:
		return c.Promo
	case seatmap.Economy:
		return c.Economy
	case seatmap.Business:
		return c.Business
	default:
		return 0
	}
}

type Route struct {
	FromStationID int64 `json:"from_station_id"`
	ToStationID   int64 `json:"to_station_id"`
}

type ScheduleTemplate struct {
	ID            int64               `json:"id"`
	Route         Route               `json:"route"`
	DayOfWeek     time.Weekday        `json:"day_of_week"`
	DepartureTime TimeOfDay           `json:"departure_time"`
	ArrivalTime   TimeOfDay           `json:"arrival_time"`
	VehicleType   seatmap.VehicleType `json:"vehicle_type"`
	Capacity      ClassCapacity       `json:"capacity"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TemplatePatch carries the template fields an administrator changes; nil
// fields are left as they are.
type TemplatePatch struct {
	Route         *Route
	DayOfWeek     *time.Weekday
	DepartureTime *TimeOfDay
	ArrivalTime   *TimeOfDay
	VehicleType   *seatmap.VehicleType
	Capacity      *ClassCapacity
	IsActive      *bool
}

func (p TemplatePatch) Apply(t *ScheduleTemplate) {
	if p.Route != nil {
		t.Route = *p.Route
	}
	if p.DayOfWeek != nil {
		t.DayOfWeek = *p.DayOfWeek
	}
	if p.DepartureTime != nil {
		t.DepartureTime = *p.DepartureTime
	}
	if p.ArrivalTime != nil {
		t.ArrivalTime = *p.ArrivalTime
	}
	if p.VehicleType != nil {
		t.VehicleType = *p.VehicleType
	}
	if p.Capacity != nil {
		t.Capacity = *p.Capacity
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}

// Endpoint is a voyage end stamped with the station's display fields.
type Endpoint struct {
	StationID int64  `json:"station_id"`
	City      string `json:"city"`
	Title     string `json:"title"`
}

type Voyage struct {
	ID            int64               `json:"id"`
	TemplateID    *int64              `json:"template_id,omitempty"`
	From          Endpoint            `json:"from"`
	To            Endpoint            `json:"to"`
	DepartureDate time.Time           `json:"departure_date"`
	DepartureTime TimeOfDay           `json:"departure_time"`
	ArrivalTime   TimeOfDay           `json:"arrival_time"`
	VehicleType   seatmap.VehicleType `json:"vehicle_type"`
	Capacity      ClassCapacity       `json:"capacity"`
	Status        VoyageStatus        `json:"status"`
	Provenance    Provenance          `json:"provenance"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (v *Voyage) IsModified() bool { return v.Provenance == ProvenanceOperator }

// VoyagePatch is an operator edit of a single voyage.
type VoyagePatch struct {
	DepartureDate *time.Time
	DepartureTime *TimeOfDay
	ArrivalTime   *TimeOfDay
	VehicleType   *seatmap.VehicleType
	Capacity      *ClassCapacity
}

func (p VoyagePatch) Apply(v *Voyage) {
	if p.DepartureDate != nil {
		v.DepartureDate = DateOf(*p.DepartureDate)
	}
	if p.DepartureTime != nil {
		v.DepartureTime = *p.DepartureTime
	}
	if p.ArrivalTime != nil {
		v.ArrivalTime = *p.ArrivalTime
	}
	if p.VehicleType != nil {
		v.VehicleType = *p.VehicleType
	}
	if p.Capacity != nil {
		v.Capacity = *p.Capacity
	}
}

type SeatInventory struct {
	VoyageID    int64               `json:"voyage_id"`
	VehicleType seatmap.VehicleType `json:"vehicle_type"`
	Seats       seatmap.Bitmaps     `json:"seats"`
	SoldCount   int                 `json:"sold_count"`
	Version     int64               `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// SeatRef addresses one seat slot of a sailing.
type SeatRef struct {
	Partition seatmap.Partition `json:"partition"`
	Index     int               `json:"index"`
}

type Ticket struct {
	ID            uuid.UUID     `json:"id"`
	VoyageID      int64         `json:"voyage_id"`
	UserID        int64         `json:"user_id"`
	Class         seatmap.Class `json:"class"`
	Seats         []SeatRef     `json:"seats"`
	PassengerName string        `json:"passenger_name"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ArchivedTicket is an immutable snapshot of a ticket together with the voyage
// as it was at travel time.
type ArchivedTicket struct {
	ID              uuid.UUID           `json:"id"`
	TicketID        uuid.UUID           `json:"ticket_id"`
	UserID          int64               `json:"user_id"`
	VoyageID        int64               `json:"voyage_id"`
	Class           seatmap.Class       `json:"class"`
	Seats           []SeatRef           `json:"seats"`
	PassengerName   string              `json:"passenger_name"`
	From            Endpoint            `json:"from"`
	To              Endpoint            `json:"to"`
	DepartureDate   time.Time           `json:"departure_date"`
	DepartureTime   TimeOfDay           `json:"departure_time"`
	ArrivalTime     TimeOfDay           `json:"arrival_time"`
	VehicleType     seatmap.VehicleType `json:"vehicle_type"`
	TicketCreatedAt time.Time           `json:"ticket_created_at"`
	ArchivedAt      time.Time           `json:"archived_at"`
}

type TemplateVoyageCounts struct {
	Active    int64 `json:"active"`
	Cancelled int64 `json:"cancelled"`
	Retired   int64 `json:"retired"`
	Modified  int64 `json:"modified"`
	Total     int64 `json:"total"`
}
