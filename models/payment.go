package models

import "time"

type ObligationStatus string

const (
	ObligationPending ObligationStatus = "pending"
	ObligationPaid    ObligationStatus = "paid"
)

// PaymentObligation is the amount a customer owes a serviceman for one request.
// At most one pending row exists per (request, customer, serviceman).
type PaymentObligation struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	ServiceRequestID uint             `json:"request_id" gorm:"column:request_id;not null;index"`
	CustomerID       uint             `json:"customer_id" gorm:"not null;index"`
	ServicemanID     uint             `json:"serviceman_id" gorm:"not null;index"`
	Amount           float64          `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status           ObligationStatus `json:"status" gorm:"type:varchar(10);not null;default:'pending'"`
	Reference        string           `json:"reference,omitempty" gorm:"type:varchar(64)"`
	PaidAt           *time.Time       `json:"paid_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// PayGroupRequest is the body of a group payment
type PayGroupRequest struct {
	Amount *float64 `json:"amount"`
}

// PaymentReceipt summarizes a settled payment
type PaymentReceipt struct {
	PaymentGroupID string    `json:"payment_group_id,omitempty"`
	ObligationID   uint      `json:"obligation_id,omitempty"`
	Reference      string    `json:"reference"`
	Amount         float64   `json:"amount"`
	RequestIDs     []uint    `json:"request_ids"`
	PaidAt         time.Time `json:"paid_at"`
}
