package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"home-service-server/models"
	"home-service-server/testutil"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"postgres unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: payment_obligations.service_request_id"), true},
		{"unrelated", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRequestRepositoryClaimIsConditional(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	req := testutil.SeedRequest(t, db, 7)
	a := testutil.SeedServiceman(t, db, "A", nil)
	b := testutil.SeedServiceman(t, db, "B", nil)
	now := time.Now().UTC()

	ok, err := repo.Claim(ctx, req.ID, a.ID, now)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = repo.Claim(ctx, req.ID, b.ID, now)
	if err != nil || ok {
		t.Fatalf("second claim = %v, %v; want false", ok, err)
	}

	got, err := repo.FindByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.IsAssignedTo(a.ID) || got.Stage != models.StageAssigned {
		t.Errorf("request = stage %s assigned %v", got.Stage, got.AssignedServicemanID)
	}
	if got.AssignedServiceman == nil || got.AssignedServiceman.FullName != "A" {
		t.Error("assigned serviceman should be preloaded")
	}

	moved, err := repo.Transition(ctx, req.ID, models.StagePending, models.StageCancelled, now)
	if err != nil || moved {
		t.Errorf("transition from stale stage = %v, %v; want false", moved, err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	if _, err := NewRequestRepository(db).FindByID(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("request err = %v, want ErrNotFound", err)
	}
	if _, err := NewServicemanRepository(db).FindByID(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("serviceman err = %v, want ErrNotFound", err)
	}
	if _, err := NewPaymentRepository(db).FindByID(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("obligation err = %v, want ErrNotFound", err)
	}
}

func TestPendingObligationIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	req := testutil.SeedRequest(t, db, 7)
	sm := testutil.SeedServiceman(t, db, "A", nil)

	newOb := func(status models.ObligationStatus) *models.PaymentObligation {
		return &models.PaymentObligation{
			ServiceRequestID: req.ID,
			CustomerID:       7,
			ServicemanID:     sm.ID,
			Amount:           100,
			Status:           status,
		}
	}

	if err := db.Create(newOb(models.ObligationPending)).Error; err != nil {
		t.Fatalf("first pending: %v", err)
	}
	err := db.Create(newOb(models.ObligationPending)).Error
	if !IsUniqueViolation(err) {
		t.Fatalf("second pending err = %v, want unique violation", err)
	}
	if err := db.Create(newOb(models.ObligationPaid)).Error; err != nil {
		t.Errorf("paid obligation alongside pending: %v", err)
	}
}
