package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/testutil"
	"home-service-server/types"
	"home-service-server/utils"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *recordingSink) Publish(_ context.Context, ev notifications.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) named(name notifications.EventName) []notifications.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notifications.Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	deps       Deps
	sink       *recordingSink
	dispatch   *DispatchService
	assignment *AssignmentService
	lifecycle  *LifecycleService
	settlement *SettlementService
	inbox      *NotificationService
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}

	notificationRepo := repository.NewNotificationRepository(db)
	deps := Deps{
		DB:     db,
		Outbox: notifications.NewOutbox(notificationRepo, sink, zap.NewNop()),
		Logger: zap.NewNop(),
		Now:    clock.Now,
	}
	return &testEnv{
		db:         db,
		deps:       deps,
		sink:       sink,
		dispatch:   NewDispatchService(deps, DefaultDispatchOptions),
		assignment: NewAssignmentService(deps),
		lifecycle:  NewLifecycleService(deps),
		settlement: NewSettlementService(deps, StubSettler{}),
		inbox:      NewNotificationService(notificationRepo),
		clock:      clock,
	}
}

var bangalore = utils.Location{Latitude: 12.9716, Longitude: 77.5946}

func (e *testEnv) serviceman(t *testing.T, name string, skills ...string) types.Actor {
	t.Helper()
	loc := bangalore
	sm := testutil.SeedServiceman(t, e.db, name, &loc, skills...)
	return types.Serviceman(sm.ID)
}

func (e *testEnv) reload(t *testing.T, id uint) *models.ServiceRequest {
	t.Helper()
	req, err := repository.NewRequestRepository(e.db).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload request %d: %v", id, err)
	}
	return req
}

// advanceTo walks a claimed request through every stage up to target
func (e *testEnv) advanceTo(t *testing.T, sm types.Actor, id uint, target models.JobStatus) {
	t.Helper()
	path := []models.JobStatus{
		models.JobStatusOnTheWay,
		models.JobStatusArrived,
		models.JobStatusInProgress,
		models.JobStatusCompleted,
	}
	for _, step := range path {
		if _, err := e.lifecycle.Advance(context.Background(), sm, id, step); err != nil {
			t.Fatalf("advance to %s: %v", step, err)
		}
		if step == target {
			return
		}
	}
}

func assertErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
