package signer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Roster is the YAML document accepted by Import.
//
//	signers:
//	  - name: Ann Lee
//	    position: Director
//	    email: ann@example.com
//	    region: North        # region id or name; omit for a global signer
//	    signing_order: 1
//	    status: active
type Roster struct {
	Signers []RosterEntry `yaml:"signers"`
}

// RosterEntry is one signer in a roster file.
type RosterEntry struct {
	Name         string `yaml:"name"`
	Position     string `yaml:"position"`
	Email        string `yaml:"email"`
	Phone        string `yaml:"phone"`
	Region       string `yaml:"region"`
	SigningOrder int    `yaml:"signing_order"`
	Status       string `yaml:"status"`
}

// ImportResult summarizes a roster import.
type ImportResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Signers []*models.Signer `json:"signers"`
}

// ParseRoster decodes a roster. Unknown keys are rejected.
func ParseRoster(r io.Reader) (*Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var roster Roster
	if err := dec.Decode(&roster); err != nil {
		if err == io.EOF {
			return &Roster{}, nil
		}
		return nil, models.Invalid("roster", err.Error())
	}
	return &roster, nil
}

// Import creates or updates every roster entry in one transaction. An entry
// matches an existing signer with the same email in the same scope. Any
// failing entry aborts the whole import.
func (r *Registry) Import(ctx context.Context, actorID string, roster *Roster) (*ImportResult, error) {
	var rec events.Recorder
	var result *ImportResult
	hasher := r.newHasher()

	err := r.store.InTx(ctx, func(tx *db.Store) error {
		rec.Reset()
		result = &ImportResult{}

		existing, err := tx.Signers.List(ctx, models.SignerFilter{})
		if err != nil {
			return err
		}
		byKey := make(map[string]*models.Signer, len(existing))
		for _, s := range existing {
			byKey[rosterKey(s.Email, s.RegionID)] = s
		}

		for i, entry := range roster.Signers {
			signer, created, err := r.importEntry(ctx, tx, &rec, hasher, actorID, entry, byKey)
			if err != nil {
				return fmt.Errorf("signers[%d]: %w", i, err)
			}
			byKey[rosterKey(signer.Email, signer.RegionID)] = signer
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			result.Signers = append(result.Signers, signer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Flush(ctx, r.publisher)

	r.logger.Info().Int("created", result.Created).Int("updated", result.Updated).Msg("signer roster imported")
	return result, nil
}

func (r *Registry) importEntry(ctx context.Context, tx *db.Store, rec *events.Recorder, hasher *passwordHasher, actorID string, entry RosterEntry, byKey map[string]*models.Signer) (*models.Signer, bool, error) {
	var regionID *string
	if ref := strings.TrimSpace(entry.Region); ref != "" {
		region, err := tx.Regions.Lookup(ctx, ref)
		if err != nil {
			return nil, false, err
		}
		regionID = &region.ID
	}

	status := models.SignerStatusActive
	if entry.Status != "" {
		parsed, err := models.ParseSignerStatus(entry.Status)
		if err != nil {
			return nil, false, models.Invalid("status", err.Error())
		}
		status = parsed
	}

	email := models.NormalizeEmail(entry.Email)
	if current, ok := byKey[rosterKey(email, regionID)]; ok {
		updated, err := r.update(ctx, tx, rec, hasher, actorID, current, models.SignerUpdate{
			Name:         models.Some(entry.Name),
			Position:     models.Some(entry.Position),
			Phone:        models.Some(entry.Phone),
			SigningOrder: models.Some(entry.SigningOrder),
			Status:       models.Some(status),
		})
		return updated, false, err
	}

	signer := &models.Signer{
		Name:         entry.Name,
		Position:     entry.Position,
		Email:        email,
		Phone:        entry.Phone,
		RegionID:     regionID,
		SigningOrder: entry.SigningOrder,
		Status:       status,
	}
	if err := r.create(ctx, tx, rec, hasher, actorID, signer); err != nil {
		return nil, false, err
	}
	return signer, true, nil
}

func rosterKey(email string, regionID *string) string {
	scope := ""
	if regionID != nil {
		scope = *regionID
	}
	return models.NormalizeEmail(email) + "|" + scope
}
