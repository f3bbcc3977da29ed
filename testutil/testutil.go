package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"home-service-server/database"
	"home-service-server/models"
	"home-service-server/types"
	"home-service-server/utils"
)

const (
	JWTSecret = "home-service-test-secret"
	JWTIssuer = "home-service-test"
)

// SetupTestDB opens an isolated in-memory sqlite database with the full schema.
// A single connection keeps every statement on the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin engine in test mode
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken signs a token for actor with the test secret
func GenerateTestToken(t *testing.T, actor types.Actor) string {
	t.Helper()
	token, err := utils.GenerateToken(JWTSecret, JWTIssuer, actor, "Test "+string(actor.Role()), time.Hour)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return token
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes a JSON object body
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// SeedServiceman creates an active serviceman. A nil loc leaves the location unset.
func SeedServiceman(t *testing.T, db *gorm.DB, name string, loc *utils.Location, skills ...string) *models.Serviceman {
	t.Helper()
	sm := &models.Serviceman{
		FullName:  name,
		SkillTags: models.NewSkillTags(skills...),
	}
	if loc != nil {
		now := time.Now().UTC()
		sm.Latitude = Float(loc.Latitude)
		sm.Longitude = Float(loc.Longitude)
		sm.LocationUpdatedAt = &now
	}
	if err := db.Create(sm).Error; err != nil {
		t.Fatalf("Failed to seed serviceman: %v", err)
	}
	return sm
}

// SeedRegistration creates an onboarding application that is not an active serviceman
func SeedRegistration(t *testing.T, db *gorm.DB, name string) *models.ServicemanRegistration {
	t.Helper()
	reg := &models.ServicemanRegistration{FullName: name}
	if err := db.Create(reg).Error; err != nil {
		t.Fatalf("Failed to seed registration: %v", err)
	}
	return reg
}

// RequestOption customises a seeded request
type RequestOption func(*models.ServiceRequest)

func WithLocation(lat, lng float64) RequestOption {
	return func(r *models.ServiceRequest) {
		r.Latitude = Float(lat)
		r.Longitude = Float(lng)
	}
}

func WithoutLocation() RequestOption {
	return func(r *models.ServiceRequest) {
		r.Latitude = nil
		r.Longitude = nil
	}
}

func WithGroup(groupID string) RequestOption {
	return func(r *models.ServiceRequest) { r.PaymentGroupID = groupID }
}

func WithAmount(amount float64) RequestOption {
	return func(r *models.ServiceRequest) { r.Amount = amount }
}

func WithServiceType(serviceType string) RequestOption {
	return func(r *models.ServiceRequest) { r.ServiceType = serviceType }
}

func WithScheduledDate(date time.Time) RequestOption {
	return func(r *models.ServiceRequest) { r.ScheduledDate = datatypes.Date(date) }
}

func WithCreatedAt(at time.Time) RequestOption {
	return func(r *models.ServiceRequest) { r.CreatedAt = at }
}

// SeedRequest creates a pending request in Bangalore scheduled for tomorrow
func SeedRequest(t *testing.T, db *gorm.DB, customerID uint, opts ...RequestOption) *models.ServiceRequest {
	t.Helper()
	tomorrow := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	req := &models.ServiceRequest{
		CustomerID:     customerID,
		ServiceType:    "plumbing",
		Description:    "Leaking kitchen tap",
		Address:        "12 MG Road",
		City:           "Bangalore",
		Pincode:        "560001",
		Latitude:       Float(12.9716),
		Longitude:      Float(77.5946),
		ScheduledDate:  datatypes.Date(tomorrow),
		TimeSlot:       "10:00-12:00",
		PaymentMethod:  "upi",
		PaymentGroupID: "grp-" + uuid.NewString(),
		Amount:         500,
		PaymentStatus:  models.PaymentStatusUnpaid,
		Stage:          models.StagePending,
	}
	for _, opt := range opts {
		opt(req)
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("Failed to seed service request: %v", err)
	}
	return req
}
