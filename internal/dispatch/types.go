package dispatch

import (
	"context"

	"guestwatch/internal/database"
)

// Broadcast event names. The station room gets the full hit payload; the admin
// room gets a terser aggregate view.
const (
	EventWatchlistHit      = "WATCHLIST_HIT"
	EventWatchlistHitAdmin = "WATCHLIST_HIT_ADMIN"
)

// GuestSnapshot is an immutable view of the registered guest
type GuestSnapshot struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	IDNumber   string `json:"id_number"`
	Phone      string `json:"phone"`
	RoomNumber string `json:"room_number"`
}

// HotelSnapshot is an immutable view of the registering hotel
type HotelSnapshot struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	PinCode string `json:"pin_code"`
}

// WatchlistIndex looks up flagged identity values
type WatchlistIndex interface {
	Lookup(ctx context.Context, candidates []string) (*database.WatchlistEntry, error)
}

// AlertStore records flagged guest events
type AlertStore interface {
	Create(ctx context.Context, alert *database.Alert) error
}

// JurisdictionResolver maps a postal code to the responsible station
type JurisdictionResolver interface {
	ResolveByPinCode(ctx context.Context, pinCode string) (*database.Station, error)
}

// RecipientDirectory lists notification recipients
type RecipientDirectory interface {
	OfficersAt(ctx context.Context, stationID string) ([]*database.Officer, error)
	ActiveAdmins(ctx context.Context) ([]*database.Admin, error)
}

// NotificationStore persists per-recipient inbox entries
type NotificationStore interface {
	BatchCreate(ctx context.Context, notifications []*database.Notification) (int, error)
}

// Broadcaster delivers best-effort push events to a named room
type Broadcaster interface {
	Emit(room, event string, payload interface{}) error
}

// StationHitPayload is pushed to the matched station's room
type StationHitPayload struct {
	AlertID       string `json:"alert_id"`
	GuestName     string `json:"guest_name"`
	GuestIDNumber string `json:"guest_id_number"`
	RoomNumber    string `json:"room_number"`
	HotelName     string `json:"hotel_name"`
	Reason        string `json:"reason"`
	StationID     string `json:"station_id"`
}

// AdminHitPayload is pushed to the global admin room
type AdminHitPayload struct {
	AlertID     string `json:"alert_id"`
	GuestName   string `json:"guest_name"`
	HotelName   string `json:"hotel_name"`
	StationName string `json:"station_name"`
	StationCity string `json:"station_city"`
	Reason      string `json:"reason"`
}
