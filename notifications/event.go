package notifications

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"home-service-server/models"
	"home-service-server/types"
)

// EventName identifies a lifecycle event
type EventName string

const (
	EventRequestCreated     EventName = "request_created"
	EventJobAccepted        EventName = "job_accepted"
	EventJobStatusChanged   EventName = "job_status_changed"
	EventRequestWithdrawn   EventName = "request_withdrawn"
	EventPaymentRequired    EventName = "payment_required"
	EventPaymentReceived    EventName = "payment_received"
	EventAssignmentReminder EventName = "assignment_reminder"
)

// Event is a lifecycle change addressed to one recipient
type Event struct {
	NotificationID uint                 `json:"notification_id,omitempty"`
	Name           EventName            `json:"event"`
	RecipientID    uint                 `json:"recipient_id"`
	RecipientRole  types.Role           `json:"recipient_role"`
	RequestID      uint                 `json:"request_id"`
	ObligationID   uint                 `json:"obligation_id,omitempty"`
	Status         models.RequestStatus `json:"status"`
	JobStatus      models.JobStatus     `json:"job_status"`
	Title          string               `json:"title"`
	Message        string               `json:"message"`
	ServicemanName string               `json:"serviceman_name,omitempty"`
	Amount         *float64             `json:"amount,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// Sink receives lifecycle events after the transition committed.
// Delivery is best effort; a failing sink never undoes a transition.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Recipient returns the "role:id" key the event is addressed to
func (e Event) Recipient() string {
	return string(e.RecipientRole) + ":" + uintString(e.RecipientID)
}

// ForRequest fills the request-derived fields of an event
func ForRequest(name EventName, role types.Role, recipientID uint, req *models.ServiceRequest, at time.Time) Event {
	ev := Event{
		Name:          name,
		RecipientID:   recipientID,
		RecipientRole: role,
		RequestID:     req.ID,
		Status:        req.Status(),
		JobStatus:     req.JobStatus(),
		OccurredAt:    at,
	}
	if req.AssignedServiceman != nil {
		ev.ServicemanName = req.AssignedServiceman.FullName
	}
	ev.Title, ev.Message = describe(ev, req)
	return ev
}

// toNotification builds the outbox row for an event
func (e Event) toNotification() (*models.Notification, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	reqID := e.RequestID
	return &models.Notification{
		UserID:    e.RecipientID,
		UserType:  string(e.RecipientRole),
		Title:     e.Title,
		Message:   e.Message,
		RequestID: &reqID,
		Event:     string(e.Name),
		Data:      datatypes.JSON(data),
		CreatedAt: e.OccurredAt,
	}, nil
}

// FromNotification rebuilds the event stored in an outbox row
func FromNotification(n *models.Notification) (Event, error) {
	var ev Event
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, &ev); err != nil {
			return Event{}, err
		}
	}
	ev.NotificationID = n.ID
	ev.Name = EventName(n.Event)
	ev.RecipientID = n.UserID
	ev.RecipientRole = types.Role(n.UserType)
	ev.Title = n.Title
	ev.Message = n.Message
	if n.RequestID != nil {
		ev.RequestID = *n.RequestID
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = n.CreatedAt
	}
	return ev, nil
}
