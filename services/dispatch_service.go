package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/types"
	"home-service-server/utils"
)

// DispatchOptions tune job discovery
type DispatchOptions struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	AverageSpeedKmh float64
	// MaxLocationAge hides jobs from servicemen whose last fix is older; zero disables the check
	MaxLocationAge time.Duration
}

// DefaultDispatchOptions keeps sparse regions visible with a wide default radius
var DefaultDispatchOptions = DispatchOptions{
	DefaultRadiusKm: 800,
	MaxRadiusKm:     2000,
	AverageSpeedKmh: 30,
}

// NearbyJob is an open request with its distance from the serviceman
type NearbyJob struct {
	Request    models.ServiceRequestResponse `json:"request"`
	DistanceKm float64                       `json:"distance_km"`
	ETAMinutes int                           `json:"eta_minutes"`
}

// DispatchService creates requests and answers the read side of dispatch
type DispatchService struct {
	base
	opts DispatchOptions
}

func NewDispatchService(d Deps, opts DispatchOptions) *DispatchService {
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = DefaultDispatchOptions.DefaultRadiusKm
	}
	if opts.MaxRadiusKm < opts.DefaultRadiusKm {
		opts.MaxRadiusKm = math.Max(opts.DefaultRadiusKm, DefaultDispatchOptions.MaxRadiusKm)
	}
	if opts.AverageSpeedKmh <= 0 {
		opts.AverageSpeedKmh = DefaultDispatchOptions.AverageSpeedKmh
	}
	if opts.MaxLocationAge < 0 {
		opts.MaxLocationAge = 0
	}
	return &DispatchService{base: newBase(d), opts: opts}
}

func (s *DispatchService) buildRequest(customerID uint, in models.ServiceRequestCreate) (*models.ServiceRequest, error) {
	required := []struct{ field, value string }{
		{"service_type", in.ServiceType},
		{"address", in.Address},
		{"city", in.City},
		{"pincode", in.Pincode},
		{"scheduled_date", in.ScheduledDate},
		{"time_slot", in.TimeSlot},
		{"payment_method", in.PaymentMethod},
		{"payment_group_id", in.PaymentGroupID},
	}
	for _, r := range required {
		if utils.IsBlank(r.value) {
			return nil, invalid(r.field, "is required")
		}
	}

	date, err := utils.ParseDate(in.ScheduledDate)
	if err != nil {
		return nil, invalid("scheduled_date", "must be a YYYY-MM-DD date")
	}
	pincode := strings.TrimSpace(in.Pincode)
	if !utils.IsValidPincode(pincode) {
		return nil, invalid("pincode", "must be 6 digits")
	}
	if in.Amount == nil {
		return nil, invalid("amount", "is required")
	}
	if *in.Amount < 0 || math.IsNaN(*in.Amount) || math.IsInf(*in.Amount, 0) {
		return nil, invalid("amount", "must not be negative")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, invalid("location", "latitude and longitude must be given together")
	}
	if in.Latitude != nil && !utils.IsLocationValid(*in.Latitude, *in.Longitude) {
		return nil, invalid("location", "coordinates out of range")
	}

	return &models.ServiceRequest{
		CustomerID:     customerID,
		ServiceType:    strings.TrimSpace(in.ServiceType),
		Description:    strings.TrimSpace(in.Description),
		Address:        strings.TrimSpace(in.Address),
		City:           strings.TrimSpace(in.City),
		Pincode:        pincode,
		Landmark:       strings.TrimSpace(in.Landmark),
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		ScheduledDate:  datatypes.Date(date),
		TimeSlot:       strings.TrimSpace(in.TimeSlot),
		PaymentMethod:  strings.TrimSpace(in.PaymentMethod),
		PaymentGroupID: strings.TrimSpace(in.PaymentGroupID),
		Amount:         roundAmount(*in.Amount),
		PaymentStatus:  models.PaymentStatusUnpaid,
		Stage:          models.StagePending,
	}, nil
}

// CreateRequest stores a single pending request
func (s *DispatchService) CreateRequest(ctx context.Context, actor types.Actor, in models.ServiceRequestCreate) (*models.ServiceRequest, error) {
	reqs, err := s.create(ctx, actor, []models.ServiceRequestCreate{in})
	if err != nil {
		return nil, err
	}
	return reqs[0], nil
}

// Checkout stores several requests under one payment group in a single transaction.
// A missing payment group id is generated and shared by every item.
func (s *DispatchService) Checkout(ctx context.Context, actor types.Actor, items []models.ServiceRequestCreate) ([]*models.ServiceRequest, error) {
	if len(items) == 0 {
		return nil, invalid("items", "at least one request is required")
	}

	group := ""
	for _, it := range items {
		id := strings.TrimSpace(it.PaymentGroupID)
		if id == "" {
			continue
		}
		if group != "" && id != group {
			return nil, invalid("payment_group_id", "all items of a checkout must share one payment group")
		}
		group = id
	}
	if group == "" {
		group = uuid.NewString()
	}

	normalized := make([]models.ServiceRequestCreate, len(items))
	for i, it := range items {
		it.PaymentGroupID = group
		normalized[i] = it
	}
	return s.create(ctx, actor, normalized)
}

func (s *DispatchService) create(ctx context.Context, actor types.Actor, items []models.ServiceRequestCreate) (reqs []*models.ServiceRequest, err error) {
	ctx, span := startSpan(ctx, "DispatchService.Create", actor, attribute.Int("items", len(items)))
	defer func() { endSpan(span, err) }()

	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}

	reqs = make([]*models.ServiceRequest, 0, len(items))
	for i, in := range items {
		r, err := s.buildRequest(actor.ID(), in)
		if err != nil {
			var ve *ValidationError
			if len(items) > 1 && errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
			}
			return nil, err
		}
		reqs = append(reqs, r)
	}

	err = s.transact(ctx, func(tx *gorm.DB) ([]notifications.Event, error) {
		if err := s.requests.WithTx(tx).CreateBatch(ctx, reqs); err != nil {
			return nil, fmt.Errorf("create requests: %w", err)
		}
		now := s.now()
		events := make([]notifications.Event, 0, len(reqs))
		for _, r := range reqs {
			events = append(events, notifications.ForRequest(notifications.EventRequestCreated, types.RoleCustomer, r.CustomerID, r, now))
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("service requests created",
		zap.Uint("customer_id", actor.ID()),
		zap.Int("count", len(reqs)),
		zap.String("payment_group_id", reqs[0].PaymentGroupID),
	)
	return reqs, nil
}

// ListNearbyJobs returns open requests around the serviceman, nearest first.
// radiusKm of zero selects the configured default.
func (s *DispatchService) ListNearbyJobs(ctx context.Context, actor types.Actor, radiusKm float64) (jobs []NearbyJob, err error) {
	ctx, span := startSpan(ctx, "DispatchService.ListNearbyJobs", actor, attribute.Float64("radius_km", radiusKm))
	defer func() { endSpan(span, err) }()

	if radiusKm == 0 {
		radiusKm = s.opts.DefaultRadiusKm
	}
	if radiusKm < 0 || radiusKm > s.opts.MaxRadiusKm || math.IsNaN(radiusKm) {
		return nil, invalid("radius_km", fmt.Sprintf("must be between 0 and %.0f", s.opts.MaxRadiusKm))
	}

	sm, err := activeServiceman(ctx, s.servicemen, actor)
	if err != nil {
		return nil, err
	}
	origin, ok := utils.LocationFrom(sm.Latitude, sm.Longitude)
	if !ok {
		return nil, ErrLocationNotSet
	}
	if s.opts.MaxLocationAge > 0 && !utils.IsLocationRecent(sm.LocationUpdatedAt, s.opts.MaxLocationAge, s.now()) {
		return nil, ErrLocationStale
	}

	open, err := s.requests.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	rejected, err := s.servicemen.RejectedRequestIDs(ctx, sm.ID)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}

	candidates := make([]*models.ServiceRequest, 0, len(open))
	for i := range open {
		r := &open[i]
		if _, skip := rejected[r.ID]; skip {
			continue
		}
		if !sm.SkillTags.Matches(r.ServiceType) {
			continue
		}
		candidates = append(candidates, r)
	}

	matches := utils.FindNearby(origin, radiusKm, candidates)
	jobs = make([]NearbyJob, 0, len(matches))
	for _, m := range matches {
		dest, _ := m.Candidate.Coordinates()
		eta := utils.CalculateETA(origin, dest, s.opts.AverageSpeedKmh)
		jobs = append(jobs, NearbyJob{
			Request:    m.Candidate.ToResponse(),
			DistanceKm: math.Round(m.DistanceKm*100) / 100,
			ETAMinutes: int(eta.Minutes()),
		})
	}
	return jobs, nil
}

// UpdateLocation records the serviceman's current coordinates
func (s *DispatchService) UpdateLocation(ctx context.Context, actor types.Actor, lat, lng float64) (*models.Serviceman, error) {
	if !utils.IsLocationValid(lat, lng) {
		return nil, invalid("location", "coordinates out of range")
	}
	if _, err := activeServiceman(ctx, s.servicemen, actor); err != nil {
		return nil, err
	}
	if err := s.servicemen.UpdateLocation(ctx, actor.ID(), lat, lng, s.now()); err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	return s.servicemen.FindByID(ctx, actor.ID())
}

// GetRequest returns a request visible to the actor: its customer, its serviceman or an admin
func (s *DispatchService) GetRequest(ctx context.Context, actor types.Actor, requestID uint) (*models.ServiceRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load request: %w", err)
	}

	switch {
	case actor.IsAdmin():
	case actor.IsCustomer() && req.CustomerID == actor.ID():
	case actor.IsServiceman() && req.IsAssignedTo(actor.ID()):
	default:
		return nil, fmt.Errorf("%w: request %d is not yours", ErrForbidden, requestID)
	}
	return req, nil
}

func (s *DispatchService) ListCustomerRequests(ctx context.Context, actor types.Actor) ([]models.ServiceRequest, error) {
	if !actor.IsCustomer() {
		return nil, fmt.Errorf("%w: customer role required", ErrForbidden)
	}
	return s.requests.ListByCustomer(ctx, actor.ID())
}

// ListServicemanJobs returns the serviceman's active jobs and history
func (s *DispatchService) ListServicemanJobs(ctx context.Context, actor types.Actor) ([]models.ServiceRequest, error) {
	if _, err := activeServiceman(ctx, s.servicemen, actor); err != nil {
		return nil, err
	}
	return s.requests.ListByServiceman(ctx, actor.ID())
}

// ListAllRequests pages through every request for administrators
func (s *DispatchService) ListAllRequests(ctx context.Context, actor types.Actor, page, pageSize int, filter repository.RequestFilter) ([]models.ServiceRequest, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.requests.List(ctx, page, pageSize, filter)
}
