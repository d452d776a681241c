package workflow

import (
	"context"
	"fmt"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/models"
)

// materialize creates the contract for a request that just became approved
// and notifies the requester. The selection is copied verbatim.
func materialize(ctx context.Context, tx *db.Store, rec *events.Recorder, req *models.RentalRequest, actorID string) (*models.Contract, error) {
	contract := &models.Contract{
		RequestID:      req.ID,
		BuildingID:     req.BuildingID,
		UserID:         req.UserID,
		SelectedSpaces: req.SelectedSpaces,
		TotalPrice:     req.TotalPrice,
		Status:         models.ContractStatusApproved,
	}
	if err := tx.Contracts.Create(ctx, contract); err != nil {
		return nil, err
	}

	if err := notify(ctx, tx, req.UserID,
		"Request approved",
		fmt.Sprintf("Your request #%s is approved. Contract created.", req.ID)); err != nil {
		return nil, err
	}

	if err := rec.Record(ctx, tx.Events, models.NewEvent(
		models.EventTypeContractCreated, models.EntityTypeContract, contract.ID, actorID,
		models.ContractCreatedPayload{RequestID: req.ID, TotalPrice: contract.TotalPrice})); err != nil {
		return nil, err
	}
	return contract, nil
}

// UpdateContract applies an administrative edit. Only administrators may
// change a contract.
func (e *Engine) UpdateContract(ctx context.Context, actorID, contractID string, update models.ContractUpdate) (*models.Contract, error) {
	var contract *models.Contract
	err := e.run(ctx, func(tx *db.Store, rec *events.Recorder) error {
		if err := requireAdmin(ctx, tx, actorID, "update contract "+contractID); err != nil {
			return err
		}
		var err error
		contract, err = tx.Contracts.Get(ctx, contractID)
		if err != nil {
			return err
		}
		update.Apply(contract)
		if err := tx.Contracts.Update(ctx, contract); err != nil {
			return err
		}
		return rec.Record(ctx, tx.Events, models.NewEvent(
			models.EventTypeContractUpdated, models.EntityTypeContract, contract.ID, actorID, contract))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("contract_id", contract.ID).
		Str("status", string(contract.Status)).
		Bool("zero_risk", contract.ZeroRisk).
		Msg("contract updated")
	return contract, nil
}

func requireAdmin(ctx context.Context, tx *db.Store, actorID, action string) error {
	if actorID == "" {
		return &models.ForbiddenError{Action: action}
	}
	actor, err := tx.Users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return &models.ForbiddenError{ActorID: actorID, Action: action}
	}
	return nil
}
