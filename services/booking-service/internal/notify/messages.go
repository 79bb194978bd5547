package notify

import (
	"fmt"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type Message struct {
	Subject string
	Body    string
}

const (
	SubjectBooked    = "Reservation info"
	SubjectConfirmed = "Reservation confirmation info"
	SubjectCancelled = "Reservation cancellation info"
	SubjectReminder  = "Reminder of appointment"
)

func when(a model.Appointment) string {
	return fmt.Sprintf("%s at %s", a.Date.Format(model.DateLayout), a.Start)
}

func with(providerName string) string {
	if providerName == "" {
		return ""
	}
	return " with " + providerName
}

func Booked(a model.Appointment, providerName string) Message {
	return Message{
		Subject: SubjectBooked,
		Body: fmt.Sprintf("Your appointment%s on %s has been booked and is waiting for confirmation.",
			with(providerName), when(a)),
	}
}

func Confirmed(a model.Appointment, providerName string) Message {
	return Message{
		Subject: SubjectConfirmed,
		Body:    fmt.Sprintf("Your appointment%s on %s has been confirmed.", with(providerName), when(a)),
	}
}

func Cancelled(a model.Appointment, providerName string) Message {
	body := fmt.Sprintf("Your appointment%s on %s has been cancelled.", with(providerName), when(a))
	if a.Status == model.StatusCancelledByProvider && a.CancellationReason != "" {
		body += " Reason: " + a.CancellationReason
	}
	return Message{Subject: SubjectCancelled, Body: body}
}

func Reminder(a model.Appointment, providerName string) Message {
	return Message{
		Subject: SubjectReminder,
		Body:    fmt.Sprintf("Reminder: your appointment%s is on %s.", with(providerName), when(a)),
	}
}
