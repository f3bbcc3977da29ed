package models

import (
	"time"

	"gorm.io/datatypes"

	"home-service-server/utils"
)

// Stage is the single persisted state of a service request.
// RequestStatus and JobStatus are both derived from it.
type Stage string

const (
	StagePending    Stage = "pending"
	StageAssigned   Stage = "assigned"
	StageOnTheWay   Stage = "on_the_way"
	StageArrived    Stage = "arrived"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
	StageCancelled  Stage = "cancelled"
)

// RequestStatus is the coarse, payment-facing status
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAssigned  RequestStatus = "assigned"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusCompleted RequestStatus = "completed"
)

// JobStatus is the fine-grained field progress status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAssigned   JobStatus = "assigned"
	JobStatusOnTheWay   JobStatus = "on_the_way"
	JobStatusArrived    JobStatus = "arrived"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// ServiceRequest represents a single customer service order
type ServiceRequest struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	CustomerID           uint           `json:"customer_id" gorm:"not null;index"`
	AssignedServicemanID *uint          `json:"assigned_serviceman_id" gorm:"index"`
	AssignedServiceman   *Serviceman    `json:"assigned_serviceman,omitempty" gorm:"foreignKey:AssignedServicemanID"`
	ServiceType          string         `json:"service_type" gorm:"type:varchar(100);not null"`
	Description          string         `json:"description" gorm:"type:text"`
	Address              string         `json:"address" gorm:"type:text;not null"`
	City                 string         `json:"city" gorm:"type:varchar(100);not null"`
	Pincode              string         `json:"pincode" gorm:"type:varchar(6);not null"`
	Landmark             string         `json:"landmark" gorm:"type:varchar(255)"`
	Latitude             *float64       `json:"latitude" gorm:"type:decimal(10,8)"`
	Longitude            *float64       `json:"longitude" gorm:"type:decimal(11,8)"`
	ScheduledDate        datatypes.Date `json:"scheduled_date" gorm:"not null"`
	TimeSlot             string         `json:"time_slot" gorm:"type:varchar(50);not null"`
	PaymentMethod        string         `json:"payment_method" gorm:"type:varchar(30);not null"`
	PaymentGroupID       string         `json:"payment_group_id" gorm:"type:varchar(64);not null;index"`
	Amount               float64        `json:"amount" gorm:"type:decimal(10,2);not null;default:0"`
	FinalPrice           *float64       `json:"final_price" gorm:"type:decimal(10,2)"`
	PriceFinalized       bool           `json:"price_finalized" gorm:"not null;default:false"`
	PaymentStatus        PaymentStatus  `json:"payment_status" gorm:"type:varchar(10);not null;default:'unpaid'"`
	Stage                Stage          `json:"-" gorm:"type:varchar(20);not null;default:'pending';index"`
	ClaimedAt            *time.Time     `json:"claimed_at"`
	RemindedAt           *time.Time     `json:"-"`
	CompletedAt          *time.Time     `json:"completed_at"`
	CancelledAt          *time.Time     `json:"cancelled_at"`
	PaidAt               *time.Time     `json:"paid_at"`
	CreatedAt            time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the ServiceRequest model
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// Status derives the coarse status. A finished job stays assigned until it is paid.
func (r *ServiceRequest) Status() RequestStatus {
	switch r.Stage {
	case StagePending:
		return RequestStatusPending
	case StageCancelled:
		return RequestStatusCancelled
	case StageCompleted:
		if r.PaymentStatus == PaymentStatusPaid {
			return RequestStatusCompleted
		}
		return RequestStatusAssigned
	default:
		return RequestStatusAssigned
	}
}

// JobStatus derives the field progress status
func (r *ServiceRequest) JobStatus() JobStatus {
	switch r.Stage {
	case StagePending, StageCancelled, "":
		return JobStatusPending
	default:
		return JobStatus(r.Stage)
	}
}

// HasLocation reports whether both coordinates are recorded
func (r *ServiceRequest) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Coordinates implements utils.Locatable
func (r *ServiceRequest) Coordinates() (utils.Location, bool) {
	return utils.LocationFrom(r.Latitude, r.Longitude)
}

// SortKey implements utils.Locatable
func (r *ServiceRequest) SortKey() (time.Time, time.Time, uint) {
	return r.ScheduledTime(), r.CreatedAt, r.ID
}

// IsAssignedTo checks whether the request is claimed by the given serviceman
func (r *ServiceRequest) IsAssignedTo(servicemanID uint) bool {
	return r.AssignedServicemanID != nil && *r.AssignedServicemanID == servicemanID
}

// ScheduledTime returns the scheduled date as a time.Time
func (r *ServiceRequest) ScheduledTime() time.Time {
	return time.Time(r.ScheduledDate)
}

// ServiceRequestCreate represents the request structure for creating a service request
type ServiceRequestCreate struct {
	ServiceType    string   `json:"service_type"`
	Description    string   `json:"description"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	Pincode        string   `json:"pincode"`
	Landmark       string   `json:"landmark"`
	ScheduledDate  string   `json:"scheduled_date"` // YYYY-MM-DD
	TimeSlot       string   `json:"time_slot"`
	PaymentMethod  string   `json:"payment_method"`
	PaymentGroupID string   `json:"payment_group_id"`
	Amount         *float64 `json:"amount"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

// ServiceRequestResponse is the wire shape of a request, exposing both status axes
type ServiceRequestResponse struct {
	ID                   uint          `json:"id"`
	CustomerID           uint          `json:"customer_id"`
	AssignedServicemanID *uint         `json:"assigned_serviceman_id"`
	ServicemanName       string        `json:"serviceman_name,omitempty"`
	ServiceType          string        `json:"service_type"`
	Description          string        `json:"description"`
	Address              string        `json:"address"`
	City                 string        `json:"city"`
	Pincode              string        `json:"pincode"`
	Landmark             string        `json:"landmark,omitempty"`
	Latitude             *float64      `json:"latitude"`
	Longitude            *float64      `json:"longitude"`
	ScheduledDate        string        `json:"scheduled_date"`
	TimeSlot             string        `json:"time_slot"`
	PaymentMethod        string        `json:"payment_method"`
	PaymentGroupID       string        `json:"payment_group_id"`
	Amount               float64       `json:"amount"`
	FinalPrice           *float64      `json:"final_price"`
	PriceFinalized       bool          `json:"price_finalized"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	Status               RequestStatus `json:"status"`
	JobStatus            JobStatus     `json:"job_status"`
	ClaimedAt            *time.Time    `json:"claimed_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	CancelledAt          *time.Time    `json:"cancelled_at,omitempty"`
	PaidAt               *time.Time    `json:"paid_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ToResponse converts the entity to its wire shape
func (r *ServiceRequest) ToResponse() ServiceRequestResponse {
	resp := ServiceRequestResponse{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		AssignedServicemanID: r.AssignedServicemanID,
		ServiceType:          r.ServiceType,
		Description:          r.Description,
		Address:              r.Address,
		City:                 r.City,
		Pincode:              r.Pincode,
		Landmark:             r.Landmark,
		Latitude:             r.Latitude,
		Longitude:            r.Longitude,
		ScheduledDate:        r.ScheduledTime().Format(DateLayout),
		TimeSlot:             r.TimeSlot,
		PaymentMethod:        r.PaymentMethod,
		PaymentGroupID:       r.PaymentGroupID,
		Amount:               r.Amount,
		FinalPrice:           r.FinalPrice,
		PriceFinalized:       r.PriceFinalized,
		PaymentStatus:        r.PaymentStatus,
		Status:               r.Status(),
		JobStatus:            r.JobStatus(),
		ClaimedAt:            r.ClaimedAt,
		CompletedAt:          r.CompletedAt,
		CancelledAt:          r.CancelledAt,
		PaidAt:               r.PaidAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.AssignedServiceman != nil {
		resp.ServicemanName = r.AssignedServiceman.FullName
	}
	return resp
}

// DateLayout is the wire format of scheduled dates
const DateLayout = "2006-01-02"

// JobRejection records that a serviceman passed on a pending job.
// It is advisory only; the request itself is untouched.
type JobRejection struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ServiceRequestID uint      `json:"service_request_id" gorm:"not null;uniqueIndex:idx_job_rejection_pair"`
	ServicemanID     uint      `json:"serviceman_id" gorm:"not null;uniqueIndex:idx_job_rejection_pair"`
	RejectedAt       time.Time `json:"rejected_at"`
}
