package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tOgg1/leasedesk/internal/models"
)

func createTestChain(t *testing.T, store *Store, fx testFixture, req *models.RentalRequest, n int) []*models.RequestApproval {
	t.Helper()
	ctx := context.Background()

	tasks := make([]*models.RequestApproval, 0, n)
	for i := 0; i < n; i++ {
		signer := &models.Signer{
			Name:         "Signer",
			Email:        "signer" + string(rune('a'+i)) + "@example.com",
			RegionID:     &fx.region.ID,
			SigningOrder: i + 1,
		}
		if err := store.Signers.Create(ctx, signer); err != nil {
			t.Fatalf("create signer: %v", err)
		}
		task := &models.RequestApproval{RequestID: req.ID, SignerID: signer.ID}
		if err := store.Approvals.Create(ctx, task); err != nil {
			t.Fatalf("create approval: %v", err)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func TestApprovalRepository_ResolveOnlyOnce(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	fx := seedFixture(t, store)
	req := createTestRequest(t, store, fx)
	tasks := createTestChain(t, store, fx, req, 1)
	ctx := context.Background()

	ok, err := store.Approvals.Resolve(ctx, tasks[0].ID, models.ApprovalStatusApproved, "", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok {
		t.Fatal("expected first resolve to apply")
	}

	ok, err = store.Approvals.Resolve(ctx, tasks[0].ID, models.ApprovalStatusDeclined, "late", time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ok {
		t.Fatal("expected second resolve to be a no-op")
	}

	got, err := store.Approvals.Get(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.ApprovalStatusApproved || got.ActionAt == nil {
		t.Fatalf("unexpected task after resolve: %+v", got)
	}

	if _, err := store.Approvals.Get(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApprovalRepository_DuplicateSignerInChain(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	fx := seedFixture(t, store)
	req := createTestRequest(t, store, fx)
	tasks := createTestChain(t, store, fx, req, 1)

	err := store.Approvals.Create(context.Background(), &models.RequestApproval{RequestID: req.ID, SignerID: tasks[0].SignerID})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRentalRequestRepository_ApproveIfComplete(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	fx := seedFixture(t, store)
	req := createTestRequest(t, store, fx)
	tasks := createTestChain(t, store, fx, req, 2)
	ctx := context.Background()

	if _, err := store.Approvals.Resolve(ctx, tasks[0].ID, models.ApprovalStatusApproved, "", time.Now()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	done, err := store.Requests.ApproveIfComplete(ctx, req.ID)
	if err != nil {
		t.Fatalf("ApproveIfComplete: %v", err)
	}
	if done {
		t.Fatal("request must stay pending while a task is pending")
	}

	if _, err := store.Approvals.Resolve(ctx, tasks[1].ID, models.ApprovalStatusApproved, "", time.Now()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	done, err = store.Requests.ApproveIfComplete(ctx, req.ID)
	if err != nil {
		t.Fatalf("ApproveIfComplete: %v", err)
	}
	if !done {
		t.Fatal("expected request to be approved")
	}

	done, err = store.Requests.ApproveIfComplete(ctx, req.ID)
	if err != nil {
		t.Fatalf("ApproveIfComplete: %v", err)
	}
	if done {
		t.Fatal("second completion must not report a transition")
	}

	if rejected, err := store.Requests.Reject(ctx, req.ID); err != nil || rejected {
		t.Fatalf("approved request must not be rejected: %v %v", rejected, err)
	}
}

func TestApprovalRepository_CancelPending(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	fx := seedFixture(t, store)
	req := createTestRequest(t, store, fx)
	tasks := createTestChain(t, store, fx, req, 3)
	ctx := context.Background()

	if _, err := store.Approvals.Resolve(ctx, tasks[0].ID, models.ApprovalStatusDeclined, "no", time.Now()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cancelled, err := store.Approvals.CancelPending(ctx, req.ID, time.Now())
	if err != nil {
		t.Fatalf("CancelPending: %v", err)
	}
	if len(cancelled) != 2 {
		t.Fatalf("expected 2 cancelled tasks, got %d", len(cancelled))
	}

	counts, err := store.Approvals.CountByStatus(ctx, req.ID)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[models.ApprovalStatusDeclined] != 1 || counts[models.ApprovalStatusCancelled] != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestContractRepository_OnePerRequest(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewStore(database)
	fx := seedFixture(t, store)
	req := createTestRequest(t, store, fx)
	ctx := context.Background()

	contract := &models.Contract{
		RequestID:      req.ID,
		BuildingID:     req.BuildingID,
		UserID:         req.UserID,
		SelectedSpaces: req.SelectedSpaces,
		TotalPrice:     req.TotalPrice,
	}
	if err := store.Contracts.Create(ctx, contract); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if contract.Status != models.ContractStatusApproved {
		t.Fatalf("expected approved contract, got %s", contract.Status)
	}

	dup := *contract
	dup.ID = ""
	if err := store.Contracts.Create(ctx, &dup); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	contract.ZeroRisk = true
	contract.ZeroRiskDoc = "docs/zr.pdf"
	if err := store.Contracts.Update(ctx, contract); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Contracts.GetByRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByRequest: %v", err)
	}
	if !got.ZeroRisk || got.ZeroRiskDoc != "docs/zr.pdf" {
		t.Fatalf("unexpected contract: %+v", got)
	}
	if string(got.SelectedSpaces) != string(req.SelectedSpaces) {
		t.Fatalf("selected spaces not copied: %s", got.SelectedSpaces)
	}
}
