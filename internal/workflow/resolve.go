package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Resolution is the result of approving or declining a task.
type Resolution struct {
	Approval *models.RequestApproval `json:"approval"`
	Request  *models.RentalRequest   `json:"request"`
	Outcome  models.Outcome          `json:"outcome"`

	// Contract is set when this resolution completed the chain.
	Contract *models.Contract `json:"contract,omitempty"`

	// Cancelled lists sibling tasks cancelled by a veto.
	Cancelled []string `json:"cancelled,omitempty"`
}

// Approve records actorID's approval of a task. When it was the last
// outstanding task the request is approved, its contract is created and the
// requester is notified, all in the same transaction. Exactly one concurrent
// caller can complete a request.
//
// Resolving a task that is no longer pending is a ConflictError. Approving a
// pending task of a rejected request is recorded; the request stays rejected.
func (e *Engine) Approve(ctx context.Context, approvalID, actorID, comment string) (*Resolution, error) {
	var res *Resolution
	err := e.run(ctx, func(tx *db.Store, rec *events.Recorder) error {
		approval, err := e.resolveTask(ctx, tx, approvalID, actorID, models.ApprovalStatusApproved, strings.TrimSpace(comment))
		if err != nil {
			return err
		}
		if err := rec.Record(ctx, tx.Events, resolvedEvent(models.EventTypeApprovalApproved, approval, actorID)); err != nil {
			return err
		}

		res = &Resolution{Approval: approval, Outcome: models.OutcomeStillPending}

		completed, err := tx.Requests.ApproveIfComplete(ctx, approval.RequestID)
		if err != nil {
			return err
		}
		req, err := tx.Requests.Get(ctx, approval.RequestID)
		if err != nil {
			return err
		}
		res.Request = req

		switch {
		case completed:
			if err := rec.Record(ctx, tx.Events, models.NewEvent(
				models.EventTypeRequestApproved, models.EntityTypeRequest, req.ID, actorID, nil)); err != nil {
				return err
			}
			contract, err := materialize(ctx, tx, rec, req, actorID)
			if err != nil {
				return err
			}
			res.Contract = contract
			res.Outcome = models.OutcomeRequestApproved
		case req.Status == models.RequestStatusRejected:
			res.Outcome = models.OutcomeRequestRejected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logResolution(res, actorID)
	return res, nil
}

// Decline records actorID's veto. An unknown task is NotFound; otherwise the
// reason is mandatory. The parent request is rejected immediately regardless
// of its other tasks, and the requester is notified with the reason.
// Remaining pending tasks are left untouched unless the engine cancels on
// veto.
func (e *Engine) Decline(ctx context.Context, approvalID, actorID, reason string) (*Resolution, error) {
	reason = strings.TrimSpace(reason)

	var res *Resolution
	err := e.run(ctx, func(tx *db.Store, rec *events.Recorder) error {
		if reason == "" {
			if _, err := tx.Approvals.Get(ctx, approvalID); err != nil {
				return err
			}
			return models.Invalid("reason", "decline reason is required")
		}

		approval, err := e.resolveTask(ctx, tx, approvalID, actorID, models.ApprovalStatusDeclined, reason)
		if err != nil {
			return err
		}
		if err := rec.Record(ctx, tx.Events, resolvedEvent(models.EventTypeApprovalDeclined, approval, actorID)); err != nil {
			return err
		}

		res = &Resolution{Approval: approval, Outcome: models.OutcomeRequestRejected}

		rejected, err := tx.Requests.Reject(ctx, approval.RequestID)
		if err != nil {
			return err
		}
		req, err := tx.Requests.Get(ctx, approval.RequestID)
		if err != nil {
			return err
		}
		res.Request = req

		// A second veto on an already rejected request does not notify again.
		if !rejected {
			return nil
		}

		if err := notify(ctx, tx, req.UserID,
			"Request declined",
			fmt.Sprintf("Your request #%s was declined: %s", req.ID, reason)); err != nil {
			return err
		}
		if err := rec.Record(ctx, tx.Events, models.NewEvent(
			models.EventTypeRequestRejected, models.EntityTypeRequest, req.ID, actorID,
			map[string]string{"reason": reason, "approval_id": approval.ID})); err != nil {
			return err
		}

		if !e.cancelOnVeto {
			return nil
		}
		cancelled, err := tx.Approvals.CancelPending(ctx, req.ID, e.now())
		if err != nil {
			return err
		}
		for _, id := range cancelled {
			if err := rec.Record(ctx, tx.Events, models.NewEvent(
				models.EventTypeApprovalCancelled, models.EntityTypeApproval, id, actorID,
				map[string]string{"request_id": req.ID})); err != nil {
				return err
			}
		}
		res.Cancelled = cancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logResolution(res, actorID)
	return res, nil
}

// resolveTask moves a pending task to status on behalf of actorID. The write
// comes first so the transaction holds the database write lock for the rest
// of the unit.
func (e *Engine) resolveTask(ctx context.Context, tx *db.Store, approvalID, actorID string, status models.ApprovalStatus, reason string) (*models.RequestApproval, error) {
	resolved, err := tx.Approvals.Resolve(ctx, approvalID, status, reason, e.now())
	if err != nil {
		return nil, err
	}
	approval, err := tx.Approvals.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, tx, actorID, approval); err != nil {
		return nil, err
	}
	if !resolved {
		return nil, models.NewConflict("approval %s is already %s", approval.ID, approval.Status)
	}
	return approval, nil
}

// authorize allows the task's own signer (matched by email) and
// administrators.
func authorize(ctx context.Context, tx *db.Store, actorID string, approval *models.RequestApproval) error {
	forbidden := &models.ForbiddenError{ActorID: actorID, Action: "resolve approval " + approval.ID}
	if actorID == "" {
		return forbidden
	}

	actor, err := tx.Users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.IsAdmin() {
		return nil
	}

	signer, err := tx.Signers.Get(ctx, approval.SignerID)
	if errors.Is(err, models.ErrNotFound) {
		return forbidden
	}
	if err != nil {
		return err
	}
	if models.NormalizeEmail(signer.Email) != actor.Email {
		return forbidden
	}
	return nil
}

func resolvedEvent(eventType models.EventType, approval *models.RequestApproval, actorID string) *models.Event {
	return models.NewEvent(eventType, models.EntityTypeApproval, approval.ID, actorID,
		models.ApprovalResolvedPayload{
			RequestID: approval.RequestID,
			SignerID:  approval.SignerID,
			Status:    approval.Status,
			Reason:    approval.Reason,
		})
}

func (e *Engine) logResolution(res *Resolution, actorID string) {
	logger := logging.WithActor(e.logger, actorID).With().
		Str("request_id", res.Approval.RequestID).
		Str("approval_id", res.Approval.ID).
		Str("signer_id", res.Approval.SignerID).
		Logger()

	logger.Info().
		Str("status", string(res.Approval.Status)).
		Str("outcome", string(res.Outcome)).
		Msg("approval resolved")

	switch {
	case res.Contract != nil:
		logger.Info().Str("contract_id", res.Contract.ID).Msg("request approved; contract materialized")
	case len(res.Cancelled) > 0:
		logger.Info().Int("cancelled", len(res.Cancelled)).Msg("pending approvals cancelled by veto")
	}
}
