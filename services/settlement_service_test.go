package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"home-service-server/models"
	"home-service-server/notifications"
	"home-service-server/repository"
	"home-service-server/testutil"
	"home-service-server/types"
)

func completedJob(t *testing.T, env *testEnv, customerID uint, opts ...testutil.RequestOption) (*models.ServiceRequest, types.Actor) {
	t.Helper()
	sm := env.serviceman(t, "Ravi")
	req := testutil.SeedRequest(t, env.db, customerID, opts...)
	if _, err := env.assignment.Claim(context.Background(), sm, req.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	env.advanceTo(t, sm, req.ID, models.JobStatusCompleted)
	return env.reload(t, req.ID), sm
}

func TestHappyPath_CreateToPaid(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	customer := types.Customer(100)
	sm := env.serviceman(t, "Ravi", "plumbing")

	created, err := env.dispatch.CreateRequest(ctx, customer, models.ServiceRequestCreate{
		ServiceType:    "plumbing",
		Address:        "12 MG Road",
		City:           "Bangalore",
		Pincode:        "560001",
		ScheduledDate:  "2026-06-02",
		TimeSlot:       "10:00-12:00",
		PaymentMethod:  "upi",
		PaymentGroupID: "grp-1",
		Amount:         testutil.Float(500),
		Latitude:       testutil.Float(12.98),
		Longitude:      testutil.Float(77.60),
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if created.Status() != models.RequestStatusPending || created.Amount != 500 {
		t.Fatalf("created = %s amount %.2f", created.Status(), created.Amount)
	}

	jobs, err := env.dispatch.ListNearbyJobs(ctx, sm, 0)
	if err != nil || len(jobs) != 1 || jobs[0].Request.ID != created.ID {
		t.Fatalf("ListNearbyJobs() = %+v, %v", jobs, err)
	}

	if _, err := env.assignment.Claim(ctx, sm, created.ID); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	env.advanceTo(t, sm, created.ID, models.JobStatusCompleted)

	priced, err := env.settlement.SetPrice(ctx, sm, created.ID, 600, true)
	if err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}
	if priced.FinalPrice == nil || *priced.FinalPrice != 600 || !priced.PriceFinalized {
		t.Fatalf("final price = %v finalized = %v", priced.FinalPrice, priced.PriceFinalized)
	}
	if priced.Status() != models.RequestStatusAssigned {
		t.Errorf("status = %s before payment, want assigned", priced.Status())
	}

	required := env.sink.named(notifications.EventPaymentRequired)
	if len(required) != 1 || required[0].Amount == nil || *required[0].Amount != 600 {
		t.Fatalf("payment_required events = %+v", required)
	}

	receipt, err := env.settlement.PayGroup(ctx, customer, "grp-1", 600)
	if err != nil {
		t.Fatalf("PayGroup() error = %v", err)
	}
	if receipt.Amount != 600 || !strings.HasPrefix(receipt.Reference, "stl_") {
		t.Errorf("receipt = %+v", receipt)
	}

	final := env.reload(t, created.ID)
	if final.Status() != models.RequestStatusCompleted || final.JobStatus() != models.JobStatusCompleted {
		t.Errorf("final statuses = %s/%s, want completed/completed", final.Status(), final.JobStatus())
	}
	if final.PaymentStatus != models.PaymentStatusPaid || final.PaidAt == nil {
		t.Errorf("payment status = %s paid_at = %v", final.PaymentStatus, final.PaidAt)
	}

	obligations, _ := repository.NewPaymentRepository(env.db).ListByCustomer(ctx, customer.ID())
	if len(obligations) != 1 || obligations[0].Status != models.ObligationPaid || obligations[0].Amount != 600 {
		t.Errorf("obligations = %+v", obligations)
	}

	received := env.sink.named(notifications.EventPaymentReceived)
	if len(received) != 1 || received[0].RecipientID != sm.ID() || received[0].RecipientRole != types.RoleServiceman {
		t.Errorf("payment_received events = %+v", received)
	}
	if len(received) == 1 && received[0].ServicemanName != "Ravi" {
		t.Errorf("payment_received serviceman name = %q, want Ravi", received[0].ServicemanName)
	}
}

func TestSetPrice_Rules(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	t.Run("before completion", func(t *testing.T) {
		sm := env.serviceman(t, "Early")
		req := testutil.SeedRequest(t, env.db, 100)
		if _, err := env.assignment.Claim(ctx, sm, req.ID); err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		env.advanceTo(t, sm, req.ID, models.JobStatusInProgress)
		_, err := env.settlement.SetPrice(ctx, sm, req.ID, 600, true)
		assertErr(t, err, ErrInvalidTransition)
	})

	t.Run("finalized price is immutable", func(t *testing.T) {
		req, sm := completedJob(t, env, 100)
		if _, err := env.settlement.SetPrice(ctx, sm, req.ID, 600, true); err != nil {
			t.Fatalf("SetPrice() error = %v", err)
		}
		_, err := env.settlement.SetPrice(ctx, sm, req.ID, 700, true)
		assertErr(t, err, ErrPriceAlreadyFinalized)
		_, err = env.settlement.SetPrice(ctx, sm, req.ID, 650, false)
		assertErr(t, err, ErrPriceAlreadyFinalized)

		if got := env.reload(t, req.ID); *got.FinalPrice != 600 {
			t.Errorf("final price = %.2f, want 600", *got.FinalPrice)
		}
	})

	t.Run("provisional price then final", func(t *testing.T) {
		req, sm := completedJob(t, env, 100)
		if _, err := env.settlement.SetPrice(ctx, sm, req.ID, 550, false); err != nil {
			t.Fatalf("provisional SetPrice() error = %v", err)
		}
		if obs, _ := repository.NewPaymentRepository(env.db).ListPendingByRequests(ctx, []uint{req.ID}); len(obs) != 0 {
			t.Errorf("provisional price opened %d obligations", len(obs))
		}
		if _, err := env.settlement.SetPrice(ctx, sm, req.ID, 575.004, true); err != nil {
			t.Fatalf("final SetPrice() error = %v", err)
		}
		obs, _ := repository.NewPaymentRepository(env.db).ListPendingByRequests(ctx, []uint{req.ID})
		if len(obs) != 1 || obs[0].Amount != 575 {
			t.Errorf("obligations = %+v, want one of 575", obs)
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		req, sm := completedJob(t, env, 100)
		for _, amount := range []float64{0, -10, 0.004, math.NaN()} {
			_, err := env.settlement.SetPrice(ctx, sm, req.ID, amount, true)
			assertErr(t, err, ErrValidation)
		}
		if got := env.reload(t, req.ID); got.PriceFinalized || got.FinalPrice != nil {
			t.Errorf("rejected amounts left price %v finalized=%v", got.FinalPrice, got.PriceFinalized)
		}
	})

	t.Run("not the assignee", func(t *testing.T) {
		req, _ := completedJob(t, env, 100)
		other := env.serviceman(t, "Other")
		_, err := env.settlement.SetPrice(ctx, other, req.ID, 600, true)
		assertErr(t, err, ErrForbidden)
		_, err = env.settlement.SetPrice(ctx, types.Customer(100), req.ID, 600, true)
		assertErr(t, err, ErrForbidden)
	})
}

func TestPayGroup_Rules(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	customer := types.Customer(100)

	req, sm := completedJob(t, env, customer.ID(), testutil.WithGroup("grp-pay"))

	_, err := env.settlement.PayGroup(ctx, customer, "grp-pay", 600)
	assertErr(t, err, ErrPriceNotFinalized)

	if _, err := env.settlement.SetPrice(ctx, sm, req.ID, 600, true); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}

	_, err = env.settlement.PayGroup(ctx, customer, "grp-pay", 500)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("underpayment error = %v, want amount validation", err)
	}
	_, err = env.settlement.PayGroup(ctx, types.Customer(200), "grp-pay", 600)
	assertErr(t, err, ErrNotFound)
	_, err = env.settlement.PayGroup(ctx, sm, "grp-pay", 600)
	assertErr(t, err, ErrForbidden)

	if _, err := env.settlement.PayGroup(ctx, customer, "grp-pay", 600.004); err != nil {
		t.Fatalf("PayGroup() error = %v", err)
	}
	_, err = env.settlement.PayGroup(ctx, customer, "grp-pay", 600)
	assertErr(t, err, ErrAlreadyPaid)

	if n := len(env.sink.named(notifications.EventPaymentReceived)); n != 1 {
		t.Errorf("payment_received events = %d, want 1", n)
	}
}

func TestPayGroup_SkipsCancelledAndSums(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	customer := types.Customer(100)
	group := testutil.WithGroup("grp-multi")

	first, sm1 := completedJob(t, env, customer.ID(), group)
	second, sm2 := completedJob(t, env, customer.ID(), group)
	withdrawn := testutil.SeedRequest(t, env.db, customer.ID(), group)
	if _, err := env.lifecycle.Withdraw(ctx, customer, withdrawn.ID); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}

	if _, err := env.settlement.SetPrice(ctx, sm1, first.ID, 300, true); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}
	if _, err := env.settlement.SetPrice(ctx, sm2, second.ID, 450.5, true); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}

	receipt, err := env.settlement.PayGroup(ctx, customer, "grp-multi", 750.5)
	if err != nil {
		t.Fatalf("PayGroup() error = %v", err)
	}
	if len(receipt.RequestIDs) != 2 {
		t.Errorf("paid request ids = %v, want two", receipt.RequestIDs)
	}
	if got := env.reload(t, withdrawn.ID); got.PaymentStatus != models.PaymentStatusUnpaid {
		t.Errorf("withdrawn request payment status = %s", got.PaymentStatus)
	}
}

func TestPayObligation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	customer := types.Customer(100)

	req, sm := completedJob(t, env, customer.ID())
	if _, err := env.settlement.SetPrice(ctx, sm, req.ID, 820, true); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}
	payments := repository.NewPaymentRepository(env.db)
	ob, err := payments.FindPending(ctx, req.ID, customer.ID(), sm.ID())
	if err != nil {
		t.Fatalf("FindPending() error = %v", err)
	}

	required := env.sink.named(notifications.EventPaymentRequired)
	if len(required) != 1 || required[0].ObligationID != ob.ID {
		t.Fatalf("payment_required events = %+v, want obligation %d", required, ob.ID)
	}

	listed, err := env.settlement.ListObligations(ctx, customer)
	if err != nil || len(listed) != 1 || listed[0].ID != ob.ID {
		t.Fatalf("ListObligations() = %+v, %v", listed, err)
	}
	got, err := env.settlement.GetObligation(ctx, customer, ob.ID)
	if err != nil || got.Amount != 820 || got.Status != models.ObligationPending {
		t.Fatalf("GetObligation() = %+v, %v", got, err)
	}
	_, err = env.settlement.GetObligation(ctx, types.Customer(200), ob.ID)
	assertErr(t, err, ErrForbidden)
	_, err = env.settlement.GetObligation(ctx, customer, 9999)
	assertErr(t, err, ErrNotFound)
	_, err = env.settlement.ListObligations(ctx, sm)
	assertErr(t, err, ErrForbidden)

	_, err = env.settlement.PayObligation(ctx, types.Customer(200), ob.ID)
	assertErr(t, err, ErrForbidden)

	receipt, err := env.settlement.PayObligation(ctx, customer, ob.ID)
	if err != nil {
		t.Fatalf("PayObligation() error = %v", err)
	}
	if receipt.ObligationID != ob.ID || receipt.Amount != 820 {
		t.Errorf("receipt = %+v", receipt)
	}
	if got := env.reload(t, req.ID); got.Status() != models.RequestStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status())
	}

	_, err = env.settlement.PayObligation(ctx, customer, ob.ID)
	assertErr(t, err, ErrAlreadyPaid)
	_, err = env.settlement.PayGroup(ctx, customer, req.PaymentGroupID, 820)
	assertErr(t, err, ErrAlreadyPaid)
	_, err = env.settlement.PayObligation(ctx, customer, 9999)
	assertErr(t, err, ErrNotFound)
}

func TestUpsertPending_SingleOpenObligation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	payments := repository.NewPaymentRepository(env.db)

	first, err := payments.UpsertPending(ctx, &models.PaymentObligation{
		ServiceRequestID: 1, CustomerID: 2, ServicemanID: 3, Amount: 100,
	})
	if err != nil {
		t.Fatalf("UpsertPending() error = %v", err)
	}
	second, err := payments.UpsertPending(ctx, &models.PaymentObligation{
		ServiceRequestID: 1, CustomerID: 2, ServicemanID: 3, Amount: 120,
	})
	if err != nil {
		t.Fatalf("second UpsertPending() error = %v", err)
	}
	if first.ID != second.ID || second.Amount != 120 {
		t.Errorf("upsert created %d then %d (amount %.2f)", first.ID, second.ID, second.Amount)
	}

	dup := &models.PaymentObligation{
		ServiceRequestID: 1, CustomerID: 2, ServicemanID: 3, Amount: 130, Status: models.ObligationPending,
	}
	if err := env.db.Create(dup).Error; !repository.IsUniqueViolation(err) {
		t.Errorf("direct duplicate insert error = %v, want unique violation", err)
	}
}
