package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	TopicAppointmentBooked      = "portal.appointment.booked.v1"
	TopicAppointmentCancelled   = "portal.appointment.cancelled.v1"
	TopicAppointmentRescheduled = "portal.appointment.rescheduled.v1"
)
