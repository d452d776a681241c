package workflow

import (
	"context"
	"errors"

	"github.com/tOgg1/leasedesk/internal/models"
)

// DefaultNotificationLimit is how many notifications a resident sees.
const DefaultNotificationLimit = 20

// RequestDetail is a request with its approval chain.
type RequestDetail struct {
	Request   *models.RentalRequest     `json:"request"`
	Approvals []*models.RequestApproval `json:"approvals"`
	Contract  *models.Contract          `json:"contract,omitempty"`
}

// TaskView is an approval task joined with the request it decides and how
// far that request's chain has got.
type TaskView struct {
	Approval *models.RequestApproval `json:"approval"`
	Request  *models.RentalRequest   `json:"request"`
	Progress ChainProgress           `json:"progress"`
}

// ChainProgress counts a request's approval tasks.
type ChainProgress struct {
	Approved int `json:"approved"`
	Total    int `json:"total"`
}

// ListPendingTasks returns a signer's pending tasks, oldest first.
func (e *Engine) ListPendingTasks(ctx context.Context, signerID string) ([]*models.RequestApproval, error) {
	if _, err := e.store.Signers.Get(ctx, signerID); err != nil {
		return nil, err
	}
	return e.store.Approvals.ListPendingBySigner(ctx, signerID)
}

// ListTasks returns every task assigned to a signer, newest first.
func (e *Engine) ListTasks(ctx context.Context, signerID string) ([]*models.RequestApproval, error) {
	if _, err := e.store.Signers.Get(ctx, signerID); err != nil {
		return nil, err
	}
	return e.store.Approvals.ListBySigner(ctx, signerID)
}

// Inbox returns a signer's pending tasks with their requests.
func (e *Engine) Inbox(ctx context.Context, signerID string) ([]TaskView, error) {
	tasks, err := e.ListPendingTasks(ctx, signerID)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(tasks))
	seen := make(map[string]TaskView)
	for _, task := range tasks {
		view, ok := seen[task.RequestID]
		if !ok {
			if view.Request, err = e.store.Requests.Get(ctx, task.RequestID); err != nil {
				return nil, err
			}
			counts, err := e.store.Approvals.CountByStatus(ctx, task.RequestID)
			if err != nil {
				return nil, err
			}
			view.Progress.Approved = counts[models.ApprovalStatusApproved]
			for _, n := range counts {
				view.Progress.Total += n
			}
			seen[task.RequestID] = view
		}
		view.Approval = task
		views = append(views, view)
	}
	return views, nil
}

// SignerForUser maps a login to its signer record by email.
func (e *Engine) SignerForUser(ctx context.Context, userID string) (*models.Signer, error) {
	user, err := e.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.store.Signers.GetByEmail(ctx, user.Email)
}

// GetRequest returns a request, its chain in creation order and its contract
// if one was materialized.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*RequestDetail, error) {
	req, err := e.store.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	approvals, err := e.store.Approvals.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	detail := &RequestDetail{Request: req, Approvals: approvals}
	if req.Status == models.RequestStatusApproved {
		contract, err := e.store.Contracts.GetByRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		detail.Contract = contract
	}
	return detail, nil
}

// ViewRequest is GetRequest restricted to the requester, administrators and
// signers in the request's chain.
func (e *Engine) ViewRequest(ctx context.Context, actorID, requestID string) (*RequestDetail, error) {
	detail, err := e.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if detail.Request.UserID == actorID {
		return detail, nil
	}
	actor, err := e.store.Users.Get(ctx, actorID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if actor.IsAdmin() {
		return detail, nil
	}
	if actor != nil {
		for _, approval := range detail.Approvals {
			signer, err := e.store.Signers.Get(ctx, approval.SignerID)
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if signer.Email == actor.Email {
				return detail, nil
			}
		}
	}
	return nil, &models.ForbiddenError{ActorID: actorID, Action: "view request " + requestID}
}

// RequestHistory returns the audit trail of a request, its approval tasks
// and its contract, oldest first. Visibility follows ViewRequest.
func (e *Engine) RequestHistory(ctx context.Context, actorID, requestID string) ([]*models.Event, error) {
	if _, err := e.ViewRequest(ctx, actorID, requestID); err != nil {
		return nil, err
	}
	return e.store.Events.RequestHistory(ctx, requestID)
}

// ListRequests returns a resident's requests, newest first.
func (e *Engine) ListRequests(ctx context.Context, userID string) ([]*models.RentalRequest, error) {
	return e.store.Requests.ListByUser(ctx, userID)
}

// ListAllRequests returns every request, newest first, optionally by status.
func (e *Engine) ListAllRequests(ctx context.Context, status models.RequestStatus) ([]*models.RentalRequest, error) {
	return e.store.Requests.List(ctx, status)
}

// ListContracts returns a resident's contracts, newest first. An empty userID
// lists all contracts.
func (e *Engine) ListContracts(ctx context.Context, userID string) ([]*models.Contract, error) {
	return e.store.Contracts.List(ctx, userID)
}

// ListNotifications returns a user's latest notifications. limit <= 0 uses
// DefaultNotificationLimit.
func (e *Engine) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return e.store.Notifications.ListByUser(ctx, userID, limit)
}

// MarkNotificationRead marks one of userID's notifications read.
func (e *Engine) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return e.store.Notifications.MarkRead(ctx, notificationID, userID)
}
