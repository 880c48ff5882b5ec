package database

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// IdentityKind discriminates which identity collection a reference points into.
type IdentityKind string

const (
	IdentityPolice        IdentityKind = "police"
	IdentityRegionalAdmin IdentityKind = "regional_admin"
	IdentityHotel         IdentityKind = "hotel"
	IdentitySystem        IdentityKind = "system"
)

// Valid reports whether the kind is one of the known identity collections.
func (k IdentityKind) Valid() bool {
	switch k {
	case IdentityPolice, IdentityRegionalAdmin, IdentityHotel, IdentitySystem:
		return true
	}
	return false
}

// ValueKind classifies a flagged watchlist value.
type ValueKind string

const (
	ValueKindIDNumber ValueKind = "id_number"
	ValueKindPhone    ValueKind = "phone_number"
)

// Alert lifecycle states. Transitions are one-way: open -> resolved.
const (
	AlertStatusOpen     = "open"
	AlertStatusResolved = "resolved"
)

// WatchlistEntry represents a flagged identity value.
// Entries are immutable once created except for deletion.
type WatchlistEntry struct {
	ID          string       `db:"id" json:"id"`
	Value       string       `db:"value" json:"value"`
	Kind        ValueKind    `db:"kind" json:"kind"`
	Reason      string       `db:"reason" json:"reason"`
	AddedByID   string       `db:"added_by_id" json:"added_by_id"`
	AddedByRole IdentityKind `db:"added_by_role" json:"added_by_role"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Alert represents a flagged guest event
type Alert struct {
	ID             string        `db:"id" json:"id"`
	GuestID        string        `db:"guest_id" json:"guest_id"`
	GuestName      string        `db:"guest_name" json:"guest_name"`
	Reason         string        `db:"reason" json:"reason"`
	Status         string        `db:"status" json:"status"`
	CreatedByID    string        `db:"created_by_id" json:"created_by_id"`
	CreatedByRole  IdentityKind  `db:"created_by_role" json:"created_by_role"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedByID   *string       `db:"resolved_by_id" json:"resolved_by_id,omitempty"`
	ResolvedByRole *IdentityKind `db:"resolved_by_role" json:"resolved_by_role,omitempty"`
	AuditFields
}

// Station represents a police station and the postal codes it serves.
// Static reference data from the dispatch pipeline's perspective.
type Station struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	City              string         `db:"city" json:"city"`
	JurisdictionCodes pq.StringArray `db:"jurisdiction_codes" json:"jurisdiction_codes"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// Officer represents an active officer assigned to a station
type Officer struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	StationID string `db:"station_id" json:"station_id"`
	Active    bool   `db:"active" json:"active"`
}

// Admin represents a regional administrator
type Admin struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Notification represents a per-recipient inbox entry.
// Station-targeted rows carry a station reference; admin-targeted rows never do.
type Notification struct {
	ID            string       `db:"id" json:"id"`
	AlertID       string       `db:"alert_id" json:"alert_id"`
	RecipientID   string       `db:"recipient_id" json:"recipient_id"`
	RecipientKind IdentityKind `db:"recipient_kind" json:"recipient_kind"`
	StationID     *string      `db:"station_id" json:"station_id,omitempty"`
	Message       string       `db:"message" json:"message"`
	IsRead        bool         `db:"is_read" json:"is_read"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// Validate checks the station/recipient-kind pairing invariant. Admin rows
// never carry a station reference; every other recipient kind must.
func (n *Notification) Validate() error {
	switch n.RecipientKind {
	case IdentityRegionalAdmin:
		if n.StationID != nil {
			return fmt.Errorf("admin notification must not carry a station reference")
		}
	case IdentityPolice, IdentityHotel:
		if n.StationID == nil {
			return fmt.Errorf("%s notification must carry a station reference", n.RecipientKind)
		}
	default:
		return fmt.Errorf("invalid recipient kind: %q", n.RecipientKind)
	}
	return nil
}
