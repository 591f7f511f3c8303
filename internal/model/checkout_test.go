package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestCanTransition_HappyPath(t *testing.T) {
    steps := []CheckoutState{StateCart, StateReview, StateTravelers, StatePayment, StateProcessing, StateConfirmation}
    for i := 0; i < len(steps)-1; i++ {
        assert.True(t, CanTransition(steps[i], steps[i+1]), "%s -> %s", steps[i], steps[i+1])
    }
}

func TestCanTransition_ReviewLoop(t *testing.T) {
    // Re-verification keeps the session in review; a rejected price
    // change sends it back to the cart step.
    assert.True(t, CanTransition(StateReview, StateReview))
    assert.True(t, CanTransition(StateReview, StateCart))
    assert.True(t, CanTransition(StateReview, StateError))
}

func TestCanTransition_NoSkippingSteps(t *testing.T) {
    assert.False(t, CanTransition(StateCart, StatePayment))
    assert.False(t, CanTransition(StateReview, StateProcessing))
    assert.False(t, CanTransition(StateTravelers, StateConfirmation))
    assert.False(t, CanTransition(StatePayment, StateTravelers))
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
    for _, from := range []CheckoutState{StateConfirmation, StateError} {
        assert.True(t, from.IsTerminal())
        for _, to := range []CheckoutState{StateCart, StateReview, StateTravelers, StatePayment, StateProcessing, StateConfirmation, StateError} {
            assert.False(t, CanTransition(from, to), "%s -> %s must be illegal", from, to)
        }
    }
}

func TestTripTransitions(t *testing.T) {
    assert.True(t, CanTransitionTrip(TripDraft, TripUpcoming))
    assert.True(t, CanTransitionTrip(TripUpcoming, TripOngoing))
    assert.True(t, CanTransitionTrip(TripOngoing, TripCompleted))
    assert.True(t, CanTransitionTrip(TripCompleted, TripArchived))
    assert.True(t, CanTransitionTrip(TripUpcoming, TripCancelled))

    assert.False(t, CanTransitionTrip(TripUpcoming, TripCompleted), "must pass through ONGOING")
    assert.False(t, CanTransitionTrip(TripCompleted, TripCancelled), "finished trips cannot be cancelled")
    assert.False(t, CanTransitionTrip(TripCancelled, TripUpcoming))
    assert.False(t, CanTransitionTrip(TripArchived, TripUpcoming))
}

func TestTripStatusIsTerminal(t *testing.T) {
    assert.True(t, TripCancelled.IsTerminal())
    assert.True(t, TripArchived.IsTerminal())
    assert.False(t, TripCompleted.IsTerminal(), "completed trips can still be archived")
}
