package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"guestwatch/internal/database"
	"guestwatch/internal/metrics"
	"guestwatch/internal/realtime"
)

// Dispatcher runs the watchlist-match pipeline for registered guests. Each
// dispatch executes on its own goroutine, fully decoupled from the caller:
// no outcome, success or failure, ever reaches the registration path.
type Dispatcher struct {
	logger        *slog.Logger
	watchlist     WatchlistIndex
	alerts        AlertStore
	stations      JurisdictionResolver
	directory     RecipientDirectory
	notifications NotificationStore
	broadcaster   Broadcaster
	collector     *metrics.Collector
	timeout       time.Duration
	wg            sync.WaitGroup
}

// New creates a new dispatcher
func New(
	logger *slog.Logger,
	watchlist WatchlistIndex,
	alerts AlertStore,
	stations JurisdictionResolver,
	directory RecipientDirectory,
	notifications NotificationStore,
	broadcaster Broadcaster,
	collector *metrics.Collector,
	timeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		watchlist:     watchlist,
		alerts:        alerts,
		stations:      stations,
		directory:     directory,
		notifications: notifications,
		broadcaster:   broadcaster,
		collector:     collector,
		timeout:       timeout,
	}
}

// Dispatch triggers the pipeline for one guest registration and returns
// immediately. The caller must not depend on its completion.
func (d *Dispatcher) Dispatch(guest GuestSnapshot, hotel HotelSnapshot) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			// A panicking dispatch must not take the process down with it.
			if p := recover(); p != nil {
				d.logger.Error("Dispatch panicked", "guest_id", guest.ID, "panic", p)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.run(ctx, guest, hotel)
	}()
}

// Wait blocks until all in-flight dispatches finish. Used during shutdown
// and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// run executes the pipeline: index check, alert write, jurisdiction
// resolution, recipient fetch, notification batch write, broadcast. Every
// step guards on the previous one; the first failing guard terminates the
// run with a log entry.
func (d *Dispatcher) run(ctx context.Context, guest GuestSnapshot, hotel HotelSnapshot) {
	d.collector.Dispatches.Inc()

	entry, err := d.watchlist.Lookup(ctx, candidateValues(guest))
	if err != nil {
		d.collector.PipelineFailures.WithLabelValues("watchlist_lookup").Inc()
		d.logger.Error("Failed to check guest against watchlist", "guest_id", guest.ID, "error", err)
		return
	}
	if entry == nil {
		d.logger.Debug("Guest not on watchlist", "guest_id", guest.ID)
		return
	}

	d.collector.Matches.Inc()
	d.logger.Info("Watchlist match detected",
		"guest_id", guest.ID,
		"entry_id", entry.ID,
		"kind", entry.Kind)

	// The match is automatic, but accountability traces to whoever flagged
	// the value, so attribution follows the entry's author.
	alert := &database.Alert{
		GuestID:       guest.ID,
		GuestName:     guest.Name,
		Reason:        fmt.Sprintf("Watchlist match on %s: %s", matchKindLabel(entry.Kind), entry.Reason),
		CreatedByID:   entry.AddedByID,
		CreatedByRole: entry.AddedByRole,
	}
	if err := d.alerts.Create(ctx, alert); err != nil {
		d.collector.PipelineFailures.WithLabelValues("alert_create").Inc()
		d.logger.Error("Failed to record watchlist alert", "guest_id", guest.ID, "error", err)
		return
	}
	d.collector.AlertsCreated.Inc()

	if hotel.PinCode == "" {
		// Bad master data on the hotel record, not a coverage gap.
		d.collector.PipelineTerminations.WithLabelValues("missing_pin_code").Inc()
		d.logger.Error("Hotel has no pin code, cannot resolve jurisdiction",
			"hotel_id", hotel.ID,
			"alert_id", alert.ID)
		return
	}

	station, err := d.stations.ResolveByPinCode(ctx, hotel.PinCode)
	if err != nil {
		d.collector.PipelineFailures.WithLabelValues("jurisdiction_resolve").Inc()
		d.logger.Error("Failed to resolve jurisdiction", "pin_code", hotel.PinCode, "error", err)
		return
	}
	if station == nil {
		d.collector.PipelineTerminations.WithLabelValues("no_station").Inc()
		d.logger.Warn("No station covers pin code, alert recorded without notifications",
			"pin_code", hotel.PinCode,
			"alert_id", alert.ID)
		return
	}

	// Officers and admins are independent reads.
	var officers []*database.Officer
	var admins []*database.Admin
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		officers, err = d.directory.OfficersAt(gctx, station.ID)
		return err
	})
	g.Go(func() error {
		var err error
		admins, err = d.directory.ActiveAdmins(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		d.collector.PipelineFailures.WithLabelValues("recipient_fetch").Inc()
		d.logger.Error("Failed to fetch notification recipients", "station_id", station.ID, "error", err)
		return
	}

	if len(officers) == 0 && len(admins) == 0 {
		d.collector.PipelineTerminations.WithLabelValues("no_recipients").Inc()
		d.logger.Warn("No recipients for watchlist alert",
			"station_id", station.ID,
			"alert_id", alert.ID)
		return
	}

	message := fmt.Sprintf("WATCHLIST MATCH: %s checked into %s (Reason: %s)",
		guest.Name, hotel.Name, entry.Reason)

	drafts := make([]*database.Notification, 0, len(officers)+len(admins))
	for _, officer := range officers {
		stationID := station.ID
		drafts = append(drafts, &database.Notification{
			AlertID:       alert.ID,
			RecipientID:   officer.ID,
			RecipientKind: database.IdentityPolice,
			StationID:     &stationID,
			Message:       message,
		})
	}
	for _, admin := range admins {
		drafts = append(drafts, &database.Notification{
			AlertID:       alert.ID,
			RecipientID:   admin.ID,
			RecipientKind: database.IdentityRegionalAdmin,
			Message:       message,
		})
	}

	count, err := d.notifications.BatchCreate(ctx, drafts)
	if err != nil {
		// The alert row remains the durable record; lost notifications are
		// degraded delivery, not corruption.
		d.collector.PipelineFailures.WithLabelValues("notification_write").Inc()
		d.logger.Error("Failed to write notifications", "alert_id", alert.ID, "error", err)
		return
	}
	d.collector.NotificationsCreated.Add(float64(count))

	d.broadcast(alert, entry, guest, hotel, station, len(officers) > 0, len(admins) > 0)
}

// broadcast emits the station-room and admin-room events. Emit failures are
// logged and swallowed: the persisted notifications are the source of truth.
func (d *Dispatcher) broadcast(
	alert *database.Alert,
	entry *database.WatchlistEntry,
	guest GuestSnapshot,
	hotel HotelSnapshot,
	station *database.Station,
	hasOfficers, hasAdmins bool,
) {
	if hasOfficers {
		payload := StationHitPayload{
			AlertID:       alert.ID,
			GuestName:     guest.Name,
			GuestIDNumber: guest.IDNumber,
			RoomNumber:    guest.RoomNumber,
			HotelName:     hotel.Name,
			Reason:        entry.Reason,
			StationID:     station.ID,
		}
		if err := d.broadcaster.Emit(realtime.StationRoom(station.ID), EventWatchlistHit, payload); err != nil {
			d.collector.BroadcastFailures.Inc()
			d.logger.Error("Failed to broadcast to station room",
				"station_id", station.ID,
				"alert_id", alert.ID,
				"error", err)
		}
	}

	if hasAdmins {
		payload := AdminHitPayload{
			AlertID:     alert.ID,
			GuestName:   guest.Name,
			HotelName:   hotel.Name,
			StationName: station.Name,
			StationCity: station.City,
			Reason:      entry.Reason,
		}
		if err := d.broadcaster.Emit(realtime.RoomAdmin, EventWatchlistHitAdmin, payload); err != nil {
			d.collector.BroadcastFailures.Inc()
			d.logger.Error("Failed to broadcast to admin room",
				"alert_id", alert.ID,
				"error", err)
		}
	}
}

// candidateValues builds the identity values to test against the index
func candidateValues(guest GuestSnapshot) []string {
	var candidates []string
	if guest.IDNumber != "" {
		candidates = append(candidates, guest.IDNumber)
	}
	if guest.Phone != "" {
		candidates = append(candidates, guest.Phone)
	}
	return candidates
}

// matchKindLabel renders a value kind for the alert reason text
func matchKindLabel(kind database.ValueKind) string {
	switch kind {
	case database.ValueKindIDNumber:
		return "ID number"
	case database.ValueKindPhone:
		return "phone number"
	default:
		return string(kind)
	}
}
