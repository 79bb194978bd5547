// Package lifecycle holds the appointment state machine. Every status change
// in the service, whether made by an actor or a sweep, goes through Apply.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var ErrIllegalTransition = errors.New("illegal state transition")

type Event int

const (
	EventConfirm Event = iota + 1
	EventCancelByClient
	EventCancelByProvider
	EventExpire
	EventFinish
)

func (e Event) String() string {
	switch e {
	case EventConfirm:
		return "confirm"
	case EventCancelByClient:
		return "cancel_by_client"
	case EventCancelByProvider:
		return "cancel_by_provider"
	case EventExpire:
		return "expire"
	case EventFinish:
		return "finish"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type edge struct {
	from  model.Status
	event Event
}

var transitions = map[edge]model.Status{
	{model.StatusPending, EventConfirm}:          model.StatusActive,
	{model.StatusPending, EventExpire}:           model.StatusNotAccepted,
	{model.StatusPending, EventCancelByClient}:   model.StatusCancelledByClient,
	{model.StatusPending, EventCancelByProvider}: model.StatusCancelledByProvider,
	{model.StatusActive, EventFinish}:            model.StatusFinished,
	{model.StatusActive, EventCancelByClient}:    model.StatusCancelledByClient,
	{model.StatusActive, EventCancelByProvider}:  model.StatusCancelledByProvider,
}

// Apply returns the status reached from `from` on ev.
func Apply(from model.Status, ev Event) (model.Status, error) {
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, ev, from)
	}
	return to, nil
}

func Can(from model.Status, ev Event) bool {
	_, ok := transitions[edge{from, ev}]
	return ok
}
