package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// SkillTags lists the service types a serviceman accepts.
// Stored as text[] on postgres and as a delimited text column elsewhere.
type SkillTags pq.StringArray

// GormDataType lets schema parsing treat the slice as a single column
func (SkillTags) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect
func (SkillTags) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (t SkillTags) Value() (driver.Value, error) {
	return pq.StringArray(t).Value()
}

func (t *SkillTags) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*t = SkillTags(arr)
	return nil
}

// Matches reports whether the tags cover the given service type.
// An empty tag list matches everything.
func (t SkillTags) Matches(serviceType string) bool {
	if len(t) == 0 {
		return true
	}
	for _, tag := range t {
		if strings.EqualFold(strings.TrimSpace(tag), strings.TrimSpace(serviceType)) {
			return true
		}
	}
	return false
}

// NewSkillTags builds tags from plain strings
func NewSkillTags(tags ...string) SkillTags {
	return SkillTags(tags)
}

func (t SkillTags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

func (t *SkillTags) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*t = tags
	return nil
}

// Serviceman is an active field worker profile.
// Only ids present in this table may claim jobs.
type Serviceman struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	FullName          string     `json:"full_name" gorm:"type:varchar(255);not null"`
	PhoneNumber       string     `json:"phone_number" gorm:"type:varchar(20)"`
	Latitude          *float64   `json:"latitude" gorm:"type:decimal(10,8)"`
	Longitude         *float64   `json:"longitude" gorm:"type:decimal(11,8)"`
	LocationUpdatedAt *time.Time `json:"location_updated_at"`
	SkillTags         SkillTags  `json:"skill_tags"`
	TotalJobs         int        `json:"total_jobs" gorm:"not null;default:0"`
	CompletedJobs     int        `json:"completed_jobs" gorm:"not null;default:0"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the Serviceman model
func (Serviceman) TableName() string {
	return "servicemen"
}

// HasLocation reports whether the serviceman shared coordinates
func (s *Serviceman) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// ServicemanRegistration is an onboarding application that has not been activated
type ServicemanRegistration struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FullName    string    `json:"full_name" gorm:"type:varchar(255);not null"`
	PhoneNumber string    `json:"phone_number" gorm:"type:varchar(20)"`
	SkillTags   SkillTags `json:"skill_tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// LocationUpdateRequest represents a serviceman's location update
type LocationUpdateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
