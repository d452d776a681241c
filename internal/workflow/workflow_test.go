package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/models"
	"github.com/tOgg1/leasedesk/internal/testutil"
)

type harness struct {
	store    *db.Store
	engine   *Engine
	building *models.Building
	resident *models.User
	admin    *models.User
	signerA  *models.Signer
	signerB  *models.Signer
	userA    *models.User
	userB    *models.User
	seen     *eventLog
}

type eventLog struct {
	mu    sync.Mutex
	types []models.EventType
}

func (l *eventLog) handle(ctx context.Context, event *models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, event.Type)
}

func (l *eventLog) snapshot() []models.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.EventType(nil), l.types...)
}

// newHarness builds region R with signers A (rank 1) and B (rank 2), a
// building in R and a resident.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := testutil.OpenStore(t)
	pub := events.NewBus(zerolog.Nop())
	t.Cleanup(pub.Close)
	seen := &eventLog{}
	pub.Subscribe("test", events.Filter{}, seen.handle)

	region := testutil.CreateRegion(t, store, "R")
	h := &harness{
		store:    store,
		engine:   NewEngine(store, append([]Option{WithPublisher(pub)}, opts...)...),
		building: testutil.CreateBuilding(t, store, region.ID),
		resident: testutil.CreateUser(t, store, "resident@example.com", models.RoleResident),
		admin:    testutil.CreateUser(t, store, "admin@example.com", models.RoleAdmin),
		signerA:  testutil.CreateSigner(t, store, "a@example.com", &region.ID, 1),
		signerB:  testutil.CreateSigner(t, store, "b@example.com", &region.ID, 2),
		userA:    testutil.CreateUser(t, store, "a@example.com", models.RoleSigner),
		userB:    testutil.CreateUser(t, store, "b@example.com", models.RoleSigner),
		seen:     seen,
	}
	return h
}

func (h *harness) submit(t *testing.T, price float64) *Submission {
	t.Helper()
	sub, err := h.engine.SubmitRequest(context.Background(), SubmitInput{
		RequesterID:    h.resident.ID,
		BuildingID:     h.building.ID,
		SelectedSpaces: testutil.Selection(),
		TotalPrice:     price,
	})
	require.NoError(t, err)
	return sub
}

func (h *harness) notifications(t *testing.T) []*models.Notification {
	t.Helper()
	notes, err := h.engine.ListNotifications(context.Background(), h.resident.ID, 0)
	require.NoError(t, err)
	return notes
}

func (h *harness) contractCount(t *testing.T, requestID string) int {
	t.Helper()
	n, err := h.store.Contracts.CountByRequest(context.Background(), requestID)
	require.NoError(t, err)
	return n
}

func TestSubmitApproveApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	sub := h.submit(t, 1000)
	require.Equal(t, models.RequestStatusPending, sub.Request.Status)
	require.Len(t, sub.Approvals, 2)
	require.Equal(t, h.signerA.ID, sub.Approvals[0].SignerID)
	require.Equal(t, h.signerB.ID, sub.Approvals[1].SignerID)

	notes := h.notifications(t)
	require.Len(t, notes, 1)
	require.Equal(t, "Request submitted", notes[0].Title)
	require.Equal(t, "Rental request #"+sub.Request.ID+" submitted.", notes[0].Message)

	res, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeStillPending, res.Outcome)
	require.Equal(t, models.RequestStatusPending, res.Request.Status)
	require.Nil(t, res.Contract)
	require.Equal(t, 0, h.contractCount(t, sub.Request.ID))

	res, err = h.engine.Approve(ctx, sub.Approvals[1].ID, h.userB.ID, "looks good")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeRequestApproved, res.Outcome)
	require.Equal(t, models.RequestStatusApproved, res.Request.Status)
	require.NotNil(t, res.Contract)
	require.Equal(t, 1000.0, res.Contract.TotalPrice)
	require.JSONEq(t, string(testutil.Selection()), string(res.Contract.SelectedSpaces))
	require.False(t, res.Contract.ZeroRisk)
	require.Equal(t, "looks good", res.Approval.Reason)
	require.NotNil(t, res.Approval.ActionAt)
	require.Equal(t, 1, h.contractCount(t, sub.Request.ID))

	notes = h.notifications(t)
	require.Len(t, notes, 2)
	require.Equal(t, "Request approved", notes[0].Title)
	require.Equal(t, "Your request #"+sub.Request.ID+" is approved. Contract created.", notes[0].Message)

	detail, err := h.engine.GetRequest(ctx, sub.Request.ID)
	require.NoError(t, err)
	require.Len(t, detail.Approvals, 2)
	require.Equal(t, res.Contract.ID, detail.Contract.ID)

	require.Equal(t, []models.EventType{
		models.EventTypeRequestSubmitted,
		models.EventTypeApprovalApproved,
		models.EventTypeApprovalApproved,
		models.EventTypeRequestApproved,
		models.EventTypeContractCreated,
	}, h.seen.snapshot())
}

func TestDeclineIsVeto(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 1000)

	_, err := h.engine.Decline(ctx, sub.Approvals[1].ID, h.userB.ID, "incomplete docs")
	require.NoError(t, err)

	detail, err := h.engine.GetRequest(ctx, sub.Request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, detail.Request.Status)
	require.Equal(t, models.ApprovalStatusPending, detail.Approvals[0].Status)
	require.Equal(t, models.ApprovalStatusDeclined, detail.Approvals[1].Status)
	require.Equal(t, "incomplete docs", detail.Approvals[1].Reason)

	notes := h.notifications(t)
	require.Len(t, notes, 2)
	require.Equal(t, "Request declined", notes[0].Title)
	require.Contains(t, notes[0].Message, "incomplete docs")

	// A later approval on the remaining task does not resurrect the request.
	res, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeRequestRejected, res.Outcome)
	require.Equal(t, models.RequestStatusRejected, res.Request.Status)
	require.Equal(t, 0, h.contractCount(t, sub.Request.ID))
}

func TestDeclineRequiresReason(t *testing.T) {
	h := newHarness(t)
	sub := h.submit(t, 10)

	_, err := h.engine.Decline(context.Background(), sub.Approvals[0].ID, h.userA.ID, "   ")
	require.ErrorIs(t, err, models.ErrValidation)

	task, err := h.store.Approvals.Get(context.Background(), sub.Approvals[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, task.Status)
}

func TestCancelOnVeto(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithCancelOnVeto(true))
	sub := h.submit(t, 10)

	res, err := h.engine.Decline(ctx, sub.Approvals[0].ID, h.userA.ID, "no")
	require.NoError(t, err)
	require.Equal(t, []string{sub.Approvals[1].ID}, res.Cancelled)

	task, err := h.store.Approvals.Get(ctx, sub.Approvals[1].ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusCancelled, task.Status)

	_, err = h.engine.Approve(ctx, sub.Approvals[1].ID, h.userB.ID, "")
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestResolveTerminalTaskConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 10)

	_, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)

	_, err = h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "again")
	require.ErrorIs(t, err, models.ErrConflict)
	_, err = h.engine.Decline(ctx, sub.Approvals[0].ID, h.userA.ID, "changed my mind")
	require.ErrorIs(t, err, models.ErrConflict)

	task, err := h.store.Approvals.Get(ctx, sub.Approvals[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, task.Status)
	require.Empty(t, task.Reason)

	req, err := h.store.Requests.Get(ctx, sub.Request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, req.Status)
}

func TestResolveAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 10)

	// Signer B may not act on A's task, nor may the resident.
	_, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userB.ID, "")
	require.ErrorIs(t, err, models.ErrForbidden)
	_, err = h.engine.Decline(ctx, sub.Approvals[0].ID, h.resident.ID, "no")
	require.ErrorIs(t, err, models.ErrForbidden)
	_, err = h.engine.Approve(ctx, sub.Approvals[0].ID, "", "")
	require.ErrorIs(t, err, models.ErrForbidden)

	task, err := h.store.Approvals.Get(ctx, sub.Approvals[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, task.Status)

	// Administrators may resolve any task.
	res, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.admin.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, res.Approval.Status)
}

func TestResolveUnknownTask(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Approve(context.Background(), "missing", h.admin.ID, "")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = h.engine.Decline(context.Background(), "missing", h.admin.ID, "reason")
	require.ErrorIs(t, err, models.ErrNotFound)

	// Existence is checked before the reason.
	_, err = h.engine.Decline(context.Background(), "missing", h.admin.ID, "")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NotErrorIs(t, err, models.ErrValidation)
}

func TestSubmitUnknownBuildingWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.engine.SubmitRequest(ctx, SubmitInput{
		RequesterID:    h.resident.ID,
		BuildingID:     "missing",
		SelectedSpaces: testutil.Selection(),
		TotalPrice:     100,
	})
	require.ErrorIs(t, err, models.ErrNotFound)

	requests, err := h.engine.ListAllRequests(ctx, "")
	require.NoError(t, err)
	require.Empty(t, requests)
	require.Empty(t, h.notifications(t))
	count, err := h.store.Events.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, h.seen.snapshot())
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		in   SubmitInput
	}{
		{"empty selection", SubmitInput{RequesterID: h.resident.ID, BuildingID: h.building.ID, SelectedSpaces: []byte(`[]`), TotalPrice: 1}},
		{"malformed selection", SubmitInput{RequesterID: h.resident.ID, BuildingID: h.building.ID, SelectedSpaces: []byte(`{`), TotalPrice: 1}},
		{"negative price", SubmitInput{RequesterID: h.resident.ID, BuildingID: h.building.ID, SelectedSpaces: testutil.Selection(), TotalPrice: -1}},
		{"no building", SubmitInput{RequesterID: h.resident.ID, SelectedSpaces: testutil.Selection()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.SubmitRequest(context.Background(), tt.in)
			require.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestSubmitWithEmptyChainStaysPending(t *testing.T) {
	ctx := context.Background()
	store := testutil.OpenStore(t)
	engine := NewEngine(store)
	region := testutil.CreateRegion(t, store, "Empty")
	building := testutil.CreateBuilding(t, store, region.ID)
	resident := testutil.CreateUser(t, store, "", models.RoleResident)

	sub, err := engine.SubmitRequest(ctx, SubmitInput{
		RequesterID:    resident.ID,
		BuildingID:     building.ID,
		SelectedSpaces: testutil.Selection(),
		TotalPrice:     5,
	})
	require.NoError(t, err)
	require.Empty(t, sub.Approvals)
	require.Equal(t, models.RequestStatusPending, sub.Request.Status)
}

func TestChainSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 10)

	// Roster changes after submission do not touch the existing chain.
	testutil.CreateSigner(t, h.store, "late@example.com", nil, 9)
	require.NoError(t, h.store.Signers.Delete(ctx, h.signerB.ID))

	detail, err := h.engine.GetRequest(ctx, sub.Request.ID)
	require.NoError(t, err)
	require.Len(t, detail.Approvals, 2)
	require.Equal(t, h.signerB.ID, detail.Approvals[1].SignerID)
}

// TestConcurrentFinalApprovals races many approvals of the last two tasks
// and checks that exactly one contract results.
func TestConcurrentFinalApprovals(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		h := newHarness(t)
		sub := h.submit(t, 1000)

		const workers = 8
		var wg sync.WaitGroup
		var approved, conflicts, completions atomic.Int32
		errs := make(chan error, workers)

		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			task := sub.Approvals[i%2]
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				res, err := h.engine.Approve(ctx, task.ID, h.admin.ID, "")
				switch {
				case err == nil:
					approved.Add(1)
					if res.Outcome == models.OutcomeRequestApproved {
						completions.Add(1)
					}
				case errors.Is(err, models.ErrConflict):
					conflicts.Add(1)
				default:
					errs <- err
				}
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("unexpected error: %v", err)
		}
		require.EqualValues(t, 2, approved.Load())
		require.EqualValues(t, workers-2, conflicts.Load())
		require.EqualValues(t, 1, completions.Load())
		require.Equal(t, 1, h.contractCount(t, sub.Request.ID))
	}
}

func TestUpdateContract(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 10)
	_, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)
	res, err := h.engine.Approve(ctx, sub.Approvals[1].ID, h.userB.ID, "")
	require.NoError(t, err)

	update := models.ContractUpdate{
		ZeroRisk:    models.Some(true),
		ZeroRiskDoc: models.Some("policy-7.pdf"),
	}
	_, err = h.engine.UpdateContract(ctx, h.resident.ID, res.Contract.ID, update)
	require.ErrorIs(t, err, models.ErrForbidden)

	updated, err := h.engine.UpdateContract(ctx, h.admin.ID, res.Contract.ID, update)
	require.NoError(t, err)
	require.True(t, updated.ZeroRisk)
	require.Equal(t, "policy-7.pdf", updated.ZeroRiskDoc)
	require.Equal(t, models.ContractStatusApproved, updated.Status)

	_, err = h.engine.UpdateContract(ctx, h.admin.ID, "missing", update)
	require.ErrorIs(t, err, models.ErrNotFound)

	contracts, err := h.engine.ListContracts(ctx, h.resident.ID)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	require.True(t, contracts[0].ZeroRisk)
}

func TestSignerQueries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.submit(t, 10)
	second := h.submit(t, 20)

	signer, err := h.engine.SignerForUser(ctx, h.userA.ID)
	require.NoError(t, err)
	require.Equal(t, h.signerA.ID, signer.ID)

	_, err = h.engine.Approve(ctx, first.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)

	pending, err := h.engine.ListPendingTasks(ctx, h.signerA.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, second.Approvals[0].ID, pending[0].ID)

	all, err := h.engine.ListTasks(ctx, h.signerA.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, second.Approvals[0].ID, all[0].ID)

	_, err = h.engine.Approve(ctx, second.Approvals[1].ID, h.userB.ID, "")
	require.NoError(t, err)
	inbox, err := h.engine.Inbox(ctx, h.signerA.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, second.Request.ID, inbox[0].Request.ID)
	require.Equal(t, ChainProgress{Approved: 1, Total: 2}, inbox[0].Progress)

	_, err = h.engine.ListPendingTasks(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = h.engine.SignerForUser(ctx, h.resident.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestNotificationsReadFlag(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.submit(t, 10)

	notes := h.notifications(t)
	require.Len(t, notes, 1)
	require.False(t, notes[0].IsRead)

	require.NoError(t, h.engine.MarkNotificationRead(ctx, h.resident.ID, notes[0].ID))
	require.ErrorIs(t, h.engine.MarkNotificationRead(ctx, h.admin.ID, notes[0].ID), models.ErrNotFound)

	notes = h.notifications(t)
	require.True(t, notes[0].IsRead)
}

func TestViewRequestVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 100)
	stranger := testutil.CreateUser(t, h.store, "stranger@example.com", models.RoleResident)

	for _, actor := range []*models.User{h.resident, h.admin, h.userA, h.userB} {
		detail, err := h.engine.ViewRequest(ctx, actor.ID, sub.Request.ID)
		require.NoError(t, err, actor.Email)
		require.Len(t, detail.Approvals, 2)
	}

	_, err := h.engine.ViewRequest(ctx, stranger.ID, sub.Request.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = h.engine.ViewRequest(ctx, "", sub.Request.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = h.engine.ViewRequest(ctx, h.resident.ID, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRequestHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.submit(t, 250)
	other := h.submit(t, 300)

	_, err := h.engine.Approve(ctx, sub.Approvals[0].ID, h.userA.ID, "")
	require.NoError(t, err)
	_, err = h.engine.Approve(ctx, sub.Approvals[1].ID, h.userB.ID, "")
	require.NoError(t, err)

	history, err := h.engine.RequestHistory(ctx, h.resident.ID, sub.Request.ID)
	require.NoError(t, err)
	types := make([]models.EventType, 0, len(history))
	for _, e := range history {
		require.NotEqual(t, other.Request.ID, e.EntityID)
		types = append(types, e.Type)
	}
	require.ElementsMatch(t, []models.EventType{
		models.EventTypeRequestSubmitted,
		models.EventTypeApprovalApproved,
		models.EventTypeApprovalApproved,
		models.EventTypeRequestApproved,
		models.EventTypeContractCreated,
	}, types)

	stranger := testutil.CreateUser(t, h.store, "nosy@example.com", models.RoleResident)
	_, err = h.engine.RequestHistory(ctx, stranger.ID, sub.Request.ID)
	require.ErrorIs(t, err, models.ErrForbidden)
}
