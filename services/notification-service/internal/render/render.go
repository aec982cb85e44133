package render

import "fmt"

// Message is a rendered notification, channel-agnostic: SMS uses Body only.
type Message struct {
	Subject string
	Body    string
}

func greet(name string) string {
	if name == "" {
		return "Dear patient"
	}
	return "Dear " + name
}

// Scheduled announces a newly booked follow-up visit.
func Scheduled(name, date string) Message {
	return Message{
		Subject: "Your next dialysis check-up",
		Body: fmt.Sprintf(
			"%s,\n\nYour next dialysis check-up has been scheduled for %s. Please confirm the appointment up to two days before the visit.\n\nRenalWorks PD Care",
			greet(name), date,
		),
	}
}

// Confirmed acknowledges a patient confirmation.
func Confirmed(name, date string) Message {
	return Message{
		Subject: "Appointment confirmed",
		Body: fmt.Sprintf(
			"%s,\n\nThank you for confirming your dialysis check-up on %s. We look forward to seeing you.\n\nRenalWorks PD Care",
			greet(name), date,
		),
	}
}

// Missed informs the patient that a visit was recorded as missed and a new
// one was booked.
func Missed(name, missedDate, newDate string) Message {
	return Message{
		Subject: "Missed check-up rescheduled",
		Body: fmt.Sprintf(
			"%s,\n\nOur records show your dialysis check-up on %s was missed. A new visit has been booked for %s. Regular check-ups are important for your treatment; please contact the clinic if this date does not suit you.\n\nRenalWorks PD Care",
			greet(name), missedDate, newDate,
		),
	}
}

// RescheduleResolved tells the patient how staff decided their request.
func RescheduleResolved(name string, approved bool, date string) Message {
	if approved {
		return Message{
			Subject: "Reschedule approved",
			Body: fmt.Sprintf(
				"%s,\n\nYour reschedule request was approved. Your dialysis check-up is now on %s.\n\nRenalWorks PD Care",
				greet(name), date,
			),
		}
	}
	return Message{
		Subject: "Reschedule declined",
		Body: fmt.Sprintf(
			"%s,\n\nYour reschedule request could not be accommodated. Your dialysis check-up remains on %s; please confirm it or contact the clinic.\n\nRenalWorks PD Care",
			greet(name), date,
		),
	}
}
