// Package trip drives a trip's status state machine.  Transitions come
// from two directions: explicit user action (confirm, cancel, archive)
// and the time-based sweep that moves confirmed trips along as their
// dates arrive.  All status writes go through guarded UPDATEs, so a
// transition either happens exactly once or reports ErrStaleState;
// side effects (events) fire only on the winning write, which is what
// keeps the sweep idempotent.
package trip

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/queue"
    "github.com/voyago/booking-core/internal/repository"
)

// ErrInvalidTransition is returned when a requested status change is
// not in the trip state machine.
var ErrInvalidTransition = errors.New("invalid trip status transition")

// Store is the view of trip persistence the lifecycle service needs.
// *repository.TripRepo satisfies it.
type Store interface {
    GetByID(ctx context.Context, tripID uint64) (*model.Trip, error)
    GetForUser(ctx context.Context, tripID, userID uint64) (*model.Trip, error)
    UpdateStatus(ctx context.Context, tripID uint64, from, to model.TripStatus) error
    ListDueForStart(ctx context.Context, now time.Time) ([]model.Trip, error)
    ListDueForCompletion(ctx context.Context, now time.Time) ([]model.Trip, error)
}

// Publisher receives lifecycle events.  A nil publisher drops them.
type Publisher interface {
    PublishTripStatusChanged(ctx context.Context, event queue.TripStatusChangedEvent) error
}

// Service is the trip lifecycle driver.
type Service struct {
    store Store
    pub   Publisher
}

// NewService returns a lifecycle service bound to the given store and
// publisher.
func NewService(store Store, pub Publisher) *Service {
    return &Service{store: store, pub: pub}
}

// Confirm moves a draft trip to UPCOMING.  The booking finalizer calls
// this after attaching the first booking; it is also reachable for
// user-created draft itineraries.
func (s *Service) Confirm(ctx context.Context, tripID uint64) (*model.Trip, error) {
    return s.transitionByID(ctx, tripID, model.TripUpcoming)
}

// ConfirmForUser is the owner-driven variant of Confirm, for draft
// itineraries confirmed from the trips API rather than by a booking.
func (s *Service) ConfirmForUser(ctx context.Context, tripID, userID uint64) (*model.Trip, error) {
    return s.transitionForUser(ctx, tripID, userID, model.TripUpcoming)
}

// Cancel moves a trip to CANCELLED on behalf of its owner.  Refunding
// the attached bookings is a separate path; the state machine only
// records that the trip ended early.
func (s *Service) Cancel(ctx context.Context, tripID, userID uint64) (*model.Trip, error) {
    return s.transitionForUser(ctx, tripID, userID, model.TripCancelled)
}

// Archive moves a trip to ARCHIVED on behalf of its owner.
func (s *Service) Archive(ctx context.Context, tripID, userID uint64) (*model.Trip, error) {
    return s.transitionForUser(ctx, tripID, userID, model.TripArchived)
}

func (s *Service) transitionForUser(ctx context.Context, tripID, userID uint64, to model.TripStatus) (*model.Trip, error) {
    t, err := s.store.GetForUser(ctx, tripID, userID)
    if err != nil {
        return nil, err
    }
    return s.apply(ctx, t, to)
}

func (s *Service) transitionByID(ctx context.Context, tripID uint64, to model.TripStatus) (*model.Trip, error) {
    t, err := s.store.GetByID(ctx, tripID)
    if err != nil {
        return nil, err
    }
    return s.apply(ctx, t, to)
}

// apply performs one guarded transition and publishes the event when
// the write wins.  Losing the guard means another writer moved the
// trip first; the caller gets ErrStaleState and no event fires.
func (s *Service) apply(ctx context.Context, t *model.Trip, to model.TripStatus) (*model.Trip, error) {
    if !model.CanTransitionTrip(t.Status, to) {
        return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
    }
    if err := s.store.UpdateStatus(ctx, t.ID, t.Status, to); err != nil {
        return nil, err
    }
    from := t.Status
    t.Status = to
    s.publish(ctx, t, from, to)
    return t, nil
}

// Sweep applies all due time-based transitions: UPCOMING trips whose
// start date has arrived become ONGOING, and ONGOING trips whose end
// date has passed become COMPLETED.  Running the sweep twice cannot
// re-fire an event: the second run either no longer lists the trip or
// loses the guarded update.  Returns how many trips were started and
// completed.
func (s *Service) Sweep(ctx context.Context, now time.Time) (started, completed int, err error) {
    due, err := s.store.ListDueForStart(ctx, now)
    if err != nil {
        return 0, 0, err
    }
    for _, t := range due {
        t := t
        if err := s.store.UpdateStatus(ctx, t.ID, model.TripUpcoming, model.TripOngoing); err != nil {
            if errors.Is(err, repository.ErrStaleState) {
                continue // someone else already moved it
            }
            return started, completed, err
        }
        started++
        s.publish(ctx, &t, model.TripUpcoming, model.TripOngoing)
    }

    ended, err := s.store.ListDueForCompletion(ctx, now)
    if err != nil {
        return started, completed, err
    }
    for _, t := range ended {
        t := t
        if err := s.store.UpdateStatus(ctx, t.ID, model.TripOngoing, model.TripCompleted); err != nil {
            if errors.Is(err, repository.ErrStaleState) {
                continue
            }
            return started, completed, err
        }
        completed++
        s.publish(ctx, &t, model.TripOngoing, model.TripCompleted)
    }
    return started, completed, nil
}

func (s *Service) publish(ctx context.Context, t *model.Trip, from, to model.TripStatus) {
    if s.pub == nil {
        return
    }
    ev := queue.TripStatusChangedEvent{
        TripID:      t.ID,
        UserID:      t.UserID,
        Destination: t.Destination,
        FromStatus:  string(from),
        ToStatus:    string(to),
        ChangedAt:   time.Now().UTC().Format(time.RFC3339),
    }
    if err := s.pub.PublishTripStatusChanged(ctx, ev); err != nil {
        log.Printf("trip: publish status change for trip %d failed: %v", t.ID, err)
    }
}
