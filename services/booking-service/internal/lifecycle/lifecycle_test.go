package lifecycle

import (
	"errors"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var allEvents = []Event{EventConfirm, EventCancelByClient, EventCancelByProvider, EventExpire, EventFinish}

func TestApply_LegalTransitions(t *testing.T) {
	cases := []struct {
		from model.Status
		ev   Event
		want model.Status
	}{
		{model.StatusPending, EventConfirm, model.StatusActive},
		{model.StatusPending, EventExpire, model.StatusNotAccepted},
		{model.StatusPending, EventCancelByClient, model.StatusCancelledByClient},
		{model.StatusPending, EventCancelByProvider, model.StatusCancelledByProvider},
		{model.StatusActive, EventFinish, model.StatusFinished},
		{model.StatusActive, EventCancelByClient, model.StatusCancelledByClient},
		{model.StatusActive, EventCancelByProvider, model.StatusCancelledByProvider},
	}
	for _, tc := range cases {
		got, err := Apply(tc.from, tc.ev)
		if err != nil {
			t.Fatalf("%s on %s: unexpected error %v", tc.ev, tc.from, err)
		}
		if got != tc.want {
			t.Fatalf("%s on %s: expected %s, got %s", tc.ev, tc.from, tc.want, got)
		}
	}
}

func TestApply_TerminalStatesAreFinal(t *testing.T) {
	for s := model.StatusPending; s <= model.StatusFinished; s++ {
		if !s.Terminal() {
			continue
		}
		for _, ev := range allEvents {
			got, err := Apply(s, ev)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s on terminal %s: expected ErrIllegalTransition, got %v", ev, s, err)
			}
			if got != s {
				t.Fatalf("failed transition must keep status, got %s", got)
			}
		}
	}
}

func TestApply_NoSkippedPredecessor(t *testing.T) {
	// Finished is reachable only from Active, Active only from Pending.
	for s := model.StatusPending; s <= model.StatusFinished; s++ {
		for _, ev := range allEvents {
			to, err := Apply(s, ev)
			if err != nil {
				continue
			}
			if to == model.StatusFinished && s != model.StatusActive {
				t.Fatalf("finished reached from %s", s)
			}
			if to == model.StatusActive && s != model.StatusPending {
				t.Fatalf("active reached from %s", s)
			}
		}
	}
	if Can(model.StatusActive, EventConfirm) || Can(model.StatusActive, EventExpire) {
		t.Fatalf("active must not be confirmable or expirable")
	}
	if Can(model.StatusPending, EventFinish) {
		t.Fatalf("pending must not finish")
	}
}
