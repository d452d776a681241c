package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

// SubmitInput describes a new rental request.
type SubmitInput struct {
	RequesterID    string
	BuildingID     string
	SelectedSpaces json.RawMessage
	TotalPrice     float64
}

func (in SubmitInput) validate() error {
	v := &models.ValidationErrors{}
	if in.RequesterID == "" {
		v.AddMessage("requester_id", "requester is required")
	}
	if in.BuildingID == "" {
		v.AddMessage("building_id", "building is required")
	}
	if err := models.ValidateSelection(in.SelectedSpaces); err != nil {
		v.Add("", err)
	}
	if in.TotalPrice < 0 || math.IsNaN(in.TotalPrice) || math.IsInf(in.TotalPrice, 0) {
		v.AddMessage("total_price", "total price must be a non-negative number")
	}
	return v.Err()
}

// Submission is a created request together with its approval chain.
type Submission struct {
	Request   *models.RentalRequest     `json:"request"`
	Approvals []*models.RequestApproval `json:"approvals"`
}

// SubmitRequest creates a pending request and one pending approval task per
// signer in the building region's chain, then notifies the requester. Nothing
// is written if the requester or building does not exist.
//
// An empty chain is accepted; such a request stays pending indefinitely.
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitInput) (*Submission, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var sub *Submission
	err := e.run(ctx, func(tx *db.Store, rec *events.Recorder) error {
		if _, err := tx.Users.Get(ctx, in.RequesterID); err != nil {
			return err
		}
		building, err := tx.Buildings.Get(ctx, in.BuildingID)
		if err != nil {
			return err
		}
		chain, err := tx.Signers.ResolveChain(ctx, building.RegionID)
		if err != nil {
			return err
		}

		req := &models.RentalRequest{
			UserID:         in.RequesterID,
			BuildingID:     building.ID,
			SelectedSpaces: append(json.RawMessage(nil), in.SelectedSpaces...),
			TotalPrice:     in.TotalPrice,
		}
		if err := tx.Requests.Create(ctx, req); err != nil {
			return err
		}

		approvals := make([]*models.RequestApproval, 0, len(chain))
		signerIDs := make([]string, 0, len(chain))
		for _, signer := range chain {
			approval := &models.RequestApproval{RequestID: req.ID, SignerID: signer.ID}
			if err := tx.Approvals.Create(ctx, approval); err != nil {
				return err
			}
			approvals = append(approvals, approval)
			signerIDs = append(signerIDs, signer.ID)
		}

		if err := notify(ctx, tx, req.UserID,
			"Request submitted",
			fmt.Sprintf("Rental request #%s submitted.", req.ID)); err != nil {
			return err
		}

		if err := rec.Record(ctx, tx.Events, models.NewEvent(
			models.EventTypeRequestSubmitted, models.EntityTypeRequest, req.ID, in.RequesterID,
			models.RequestSubmittedPayload{
				BuildingID: building.ID,
				RegionID:   building.RegionID,
				TotalPrice: req.TotalPrice,
				Chain:      signerIDs,
			})); err != nil {
			return err
		}

		sub = &Submission{Request: req, Approvals: approvals}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.WithActor(e.logger, in.RequesterID).With().Str("request_id", sub.Request.ID).Logger()
	logger.Info().
		Str("building_id", sub.Request.BuildingID).
		Int("chain_length", len(sub.Approvals)).
		Float64("total_price", sub.Request.TotalPrice).
		Msg("rental request submitted")
	if len(sub.Approvals) == 0 {
		logger.Warn().Msg("no signers in scope; request cannot be settled")
	}
	return sub, nil
}
