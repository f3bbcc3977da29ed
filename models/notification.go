package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a user-facing message about a request transition.
// Rows double as the outbox: DeliveredAt stays nil until the sinks accepted it.
type Notification struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UserID      uint           `json:"user_id" gorm:"not null;index:idx_notification_user"`
	UserType    string         `json:"user_type" gorm:"type:varchar(20);not null;index:idx_notification_user"`
	Title       string         `json:"title" gorm:"not null"`
	Message     string         `json:"message" gorm:"type:text;not null"`
	RequestID   *uint          `json:"request_id" gorm:"index"`
	Event       string         `json:"event" gorm:"type:varchar(50);not null"`
	Data        datatypes.JSON `json:"data"`
	Read        bool           `json:"read" gorm:"not null;default:false"`
	DeliveredAt *time.Time     `json:"-" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NotificationResponse represents the structure for notification responses
type NotificationResponse struct {
	ID        uint           `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	RequestID *uint          `json:"request_id,omitempty"`
	Event     string         `json:"event"`
	Data      datatypes.JSON `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		RequestID: n.RequestID,
		Event:     n.Event,
		Data:      n.Data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
