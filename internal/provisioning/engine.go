// Package provisioning expands club opening hours into bookable time slots.
package provisioning

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// DefaultHorizonDays is how far ahead slots are generated.
const DefaultHorizonDays = 7

// Engine creates TimeSlots for a court over a rolling horizon. Slot identity
// is derived from (court, start) so repeated runs only fill gaps.
type Engine struct {
	clubs       store.ClubStore
	courts      store.CourtStore
	slots       store.SlotStore
	location    *time.Location
	priceCents  int64
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the time zone schedule hours are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithPriceCents sets the price of new slots.
func WithPriceCents(cents int64) Option {
	return func(e *Engine) { e.priceCents = cents }
}

// WithConcurrency bounds how many courts ProvisionAll works on at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a provisioning engine.
func NewEngine(clubs store.ClubStore, courts store.CourtStore, slots store.SlotStore, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		clubs:       clubs,
		courts:      courts,
		slots:       slots,
		location:    time.UTC,
		priceCents:  domain.DefaultSlotPriceCents,
		concurrency: 4,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProvisionCourt creates the missing slots of one court for days days starting
// today and returns how many were created. A missing court, club or schedule
// is logged and yields 0. Store failures are returned.
func (e *Engine) ProvisionCourt(ctx context.Context, courtID string, days int) (int, error) {
	if err := domain.ValidateHorizon(days); err != nil {
		return 0, err
	}
	log := e.logger.With("court_id", courtID)

	court, err := e.courts.GetCourt(ctx, courtID)
	if err != nil {
		log.Error("load court failed", "error", err)
		return 0, err
	}
	if court == nil {
		log.Warn("court not found, nothing to provision")
		return 0, nil
	}

	club, err := e.clubs.GetClub(ctx, court.ClubID)
	if err != nil {
		log.Error("load club failed", "club_id", court.ClubID, "error", err)
		return 0, err
	}
	if club == nil {
		log.Warn("club not found, nothing to provision", "club_id", court.ClubID)
		return 0, nil
	}
	if len(club.Schedule) == 0 {
		log.Warn("club has no schedule, nothing to provision", "club_id", club.ID)
		return 0, nil
	}

	duration := court.Duration()
	step := int(duration / time.Minute)
	today := e.now().In(e.location)

	created := 0
	for i := 0; i < days; i++ {
		day := time.Date(today.Year(), today.Month(), today.Day()+i, 0, 0, 0, 0, e.location)
		open, close, ok := club.Schedule.Hours(day.Weekday())
		if !ok {
			log.Debug("day skipped", "date", day.Format(time.DateOnly), "weekday", domain.WeekdayName(day.Weekday()))
			continue
		}

		for t := open; t+step <= close; t += step {
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, t, 0, 0, e.location).UTC()
			slot := domain.NewTimeSlot(court.ID, start, duration)
			slot.PriceCents = e.priceCents

			ok, err := e.slots.CreateTimeSlotIfAbsent(ctx, &slot)
			if err != nil {
				log.Error("create time slot failed", "slot_id", slot.ID, "error", err)
				return created, err
			}
			if ok {
				created++
			}
		}
	}

	log.Info("court provisioned", "club_id", club.ID, "days", days, "created", created)
	return created, nil
}

// ProvisionAll provisions every court and returns the total created. The
// first store failure cancels the remaining courts and is returned.
func (e *Engine) ProvisionAll(ctx context.Context, days int) (int, error) {
	if err := domain.ValidateHorizon(days); err != nil {
		return 0, err
	}
	courts, err := e.courts.ListCourts(ctx)
	if err != nil {
		e.logger.Error("list courts failed", "error", err)
		return 0, err
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, court := range courts {
		courtID := court.ID
		g.Go(func() error {
			n, err := e.ProvisionCourt(gctx, courtID, days)
			total.Add(int64(n))
			return err
		})
	}
	err = g.Wait()

	e.logger.Info("provisioning run finished", "courts", len(courts), "created", total.Load(), "failed", err != nil)
	return int(total.Load()), err
}
