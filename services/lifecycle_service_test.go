package services

import (
	"context"
	"testing"
	"time"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/testutil"
	"home-service-server/types"
)

func TestAdvance_FollowsStagesInOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sm := env.serviceman(t, "Ravi")
	req := testutil.SeedRequest(t, env.db, 100)
	if _, err := env.assignment.Claim(ctx, sm, req.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	steps := []models.JobStatus{
		models.JobStatusOnTheWay,
		models.JobStatusArrived,
		models.JobStatusInProgress,
		models.JobStatusCompleted,
	}
	for _, step := range steps {
		got, err := env.lifecycle.Advance(ctx, sm, req.ID, step)
		if err != nil {
			t.Fatalf("Advance(%s) error = %v", step, err)
		}
		if got.JobStatus() != step {
			t.Errorf("job status = %s, want %s", got.JobStatus(), step)
		}
		if got.Status() != models.RequestStatusAssigned {
			t.Errorf("status = %s after %s, want assigned until paid", got.Status(), step)
		}
	}

	done := env.reload(t, req.ID)
	if done.CompletedAt == nil {
		t.Error("completed_at not recorded")
	}
	var profile models.Serviceman
	env.db.First(&profile, sm.ID())
	if profile.CompletedJobs != 1 {
		t.Errorf("completed_jobs = %d, want 1", profile.CompletedJobs)
	}

	changes := env.sink.named(notifications.EventJobStatusChanged)
	if len(changes) != len(steps) {
		t.Fatalf("job_status_changed events = %d, want %d", len(changes), len(steps))
	}
	for i, ev := range changes {
		if ev.JobStatus != steps[i] || ev.RecipientRole != types.RoleCustomer {
			t.Errorf("event %d = %s to %s", i, ev.JobStatus, ev.Recipient())
		}
	}
	if changes[0].Title != "Serviceman On The Way" {
		t.Errorf("first title = %q", changes[0].Title)
	}
}

func TestAdvance_RejectsSkipsAndReversals(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sm := env.serviceman(t, "Ravi")
	req := testutil.SeedRequest(t, env.db, 100)
	if _, err := env.assignment.Claim(ctx, sm, req.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	_, err := env.lifecycle.Advance(ctx, sm, req.ID, models.JobStatusCompleted)
	assertErr(t, err, ErrInvalidTransition)
	_, err = env.lifecycle.Advance(ctx, sm, req.ID, models.JobStatusAssigned)
	assertErr(t, err, ErrInvalidTransition)
	_, err = env.lifecycle.Advance(ctx, sm, req.ID, models.JobStatus("teleported"))
	assertErr(t, err, ErrInvalidTransition)

	env.advanceTo(t, sm, req.ID, models.JobStatusArrived)

	for _, back := range []models.JobStatus{models.JobStatusOnTheWay, models.JobStatusAssigned, models.JobStatusPending} {
		_, err := env.lifecycle.Advance(ctx, sm, req.ID, back)
		assertErr(t, err, ErrInvalidTransition)
	}
	_, err = env.lifecycle.Advance(ctx, sm, req.ID, models.JobStatusArrived)
	assertErr(t, err, ErrInvalidTransition)

	if got := env.reload(t, req.ID).JobStatus(); got != models.JobStatusArrived {
		t.Errorf("job status = %s after rejected moves, want arrived", got)
	}
}

func TestAdvance_OnlyAssignee(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sm := env.serviceman(t, "Ravi")
	other := env.serviceman(t, "Suresh")
	req := testutil.SeedRequest(t, env.db, 100)

	_, err := env.lifecycle.Advance(ctx, sm, req.ID, models.JobStatusOnTheWay)
	assertErr(t, err, ErrForbidden)

	if _, err := env.assignment.Claim(ctx, sm, req.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	_, err = env.lifecycle.Advance(ctx, other, req.ID, models.JobStatusOnTheWay)
	assertErr(t, err, ErrForbidden)
	_, err = env.lifecycle.Advance(ctx, types.Customer(100), req.ID, models.JobStatusOnTheWay)
	assertErr(t, err, ErrForbidden)
	_, err = env.lifecycle.Advance(ctx, sm, 9999, models.JobStatusOnTheWay)
	assertErr(t, err, ErrNotFound)
}

func TestWithdraw(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	customer := types.Customer(100)
	sm := env.serviceman(t, "Ravi")

	t.Run("pending request", func(t *testing.T) {
		req := testutil.SeedRequest(t, env.db, customer.ID())
		got, err := env.lifecycle.Withdraw(ctx, customer, req.ID)
		if err != nil {
			t.Fatalf("Withdraw() error = %v", err)
		}
		if got.Status() != models.RequestStatusCancelled || got.CancelledAt == nil {
			t.Errorf("status = %s cancelled_at = %v", got.Status(), got.CancelledAt)
		}

		_, err = env.assignment.Claim(ctx, sm, req.ID)
		assertErr(t, err, ErrJobNoLongerAvailable)

		_, err = env.lifecycle.Withdraw(ctx, customer, req.ID)
		assertErr(t, err, ErrNotWithdrawable)
	})

	t.Run("claimed request", func(t *testing.T) {
		req := testutil.SeedRequest(t, env.db, customer.ID())
		if _, err := env.assignment.Claim(ctx, sm, req.ID); err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		_, err := env.lifecycle.Withdraw(ctx, customer, req.ID)
		assertErr(t, err, ErrNotWithdrawable)
		if got := env.reload(t, req.ID).Stage; got != models.StageAssigned {
			t.Errorf("stage = %s, want assigned", got)
		}
	})

	t.Run("another customer's request", func(t *testing.T) {
		req := testutil.SeedRequest(t, env.db, customer.ID())
		_, err := env.lifecycle.Withdraw(ctx, types.Customer(200), req.ID)
		assertErr(t, err, ErrNotWithdrawable)
	})

	t.Run("serviceman actor", func(t *testing.T) {
		req := testutil.SeedRequest(t, env.db, customer.ID())
		_, err := env.lifecycle.Withdraw(ctx, sm, req.ID)
		assertErr(t, err, ErrForbidden)
	})

	t.Run("missing request", func(t *testing.T) {
		_, err := env.lifecycle.Withdraw(ctx, customer, 9999)
		assertErr(t, err, ErrNotFound)
	})
}

func TestRemindStaleAssignments(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sm := env.serviceman(t, "Ravi")

	stale := testutil.SeedRequest(t, env.db, 100)
	moving := testutil.SeedRequest(t, env.db, 100)
	claimedAt := env.clock.Now()
	for _, id := range []uint{stale.ID, moving.ID} {
		if _, err := env.assignment.Claim(ctx, sm, id); err != nil {
			t.Fatalf("Claim(%d) error = %v", id, err)
		}
	}
	env.advanceTo(t, sm, moving.ID, models.JobStatusOnTheWay)

	n, err := env.lifecycle.RemindStaleAssignments(ctx, claimedAt.Add(-time.Minute))
	if err != nil || n != 0 {
		t.Fatalf("claims newer than the cutoff reminded %d, err %v", n, err)
	}

	n, err = env.lifecycle.RemindStaleAssignments(ctx, claimedAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("RemindStaleAssignments() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("reminded = %d, want 1", n)
	}
	reminders := env.sink.named(notifications.EventAssignmentReminder)
	if len(reminders) != 1 || reminders[0].RequestID != stale.ID || reminders[0].RecipientID != sm.ID() {
		t.Fatalf("reminders = %+v", reminders)
	}
	if reminders[0].ServicemanName != "Ravi" {
		t.Errorf("reminder serviceman name = %q, want Ravi", reminders[0].ServicemanName)
	}

	n, err = env.lifecycle.RemindStaleAssignments(ctx, claimedAt.Add(time.Hour))
	if err != nil || n != 0 {
		t.Errorf("second scan reminded %d, err %v", n, err)
	}
	if got := env.reload(t, stale.ID); !got.IsAssignedTo(sm.ID()) || got.Stage != models.StageAssigned {
		t.Error("reminder must not release the claim")
	}
}
