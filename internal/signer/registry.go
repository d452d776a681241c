// Package signer maintains the roster of approvers and resolves the approval
// chain for a region.
package signer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/auth"
	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/events"
	"github.com/tOgg1/leasedesk/internal/logging"
	"github.com/tOgg1/leasedesk/internal/models"
)

// Provisioning controls the login accounts created for active signers.
type Provisioning struct {
	// InitialPassword is hashed into new accounts. Empty leaves the account
	// without a password until one is set.
	InitialPassword string

	// Role is added to the account's role set.
	Role models.Role
}

// Registry manages signers.
type Registry struct {
	store     *db.Store
	publisher events.Publisher
	provision Provisioning
	logger    zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithPublisher publishes committed signer events.
func WithPublisher(pub events.Publisher) Option {
	return func(r *Registry) {
		r.publisher = pub
	}
}

// WithProvisioning overrides login provisioning settings.
func WithProvisioning(p Provisioning) Option {
	return func(r *Registry) {
		if p.Role == "" {
			p.Role = models.RoleSigner
		}
		r.provision = p
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a Registry over store.
func NewRegistry(store *db.Store, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		provision: Provisioning{Role: models.RoleSigner},
		logger:    logging.Component("signer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveChain returns the active signers for regionID plus global signers,
// ascending by rank. Regional and global signers sharing a rank are both
// kept, in registration order.
func (r *Registry) ResolveChain(ctx context.Context, regionID string) ([]*models.Signer, error) {
	if _, err := r.store.Regions.Get(ctx, regionID); err != nil {
		return nil, err
	}
	return r.store.Signers.ResolveChain(ctx, regionID)
}

// Get returns a signer by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.Signer, error) {
	return r.store.Signers.Get(ctx, id)
}

// List returns signers matching filter, ordered by rank.
func (r *Registry) List(ctx context.Context, filter models.SignerFilter) ([]*models.Signer, error) {
	return r.store.Signers.List(ctx, filter)
}

// Create registers a signer. A rank already held in the signer's region is a
// ConflictError. Active signers get a login account.
func (r *Registry) Create(ctx context.Context, actorID string, signer *models.Signer) error {
	var rec events.Recorder
	hasher := r.newHasher()
	err := r.store.InTx(ctx, func(tx *db.Store) error {
		rec.Reset()
		return r.create(ctx, tx, &rec, hasher, actorID, signer)
	})
	if err != nil {
		return err
	}
	rec.Flush(ctx, r.publisher)

	r.logger.Info().
		Str("signer_id", signer.ID).
		Str("scope", signer.Scope()).
		Int("signing_order", signer.SigningOrder).
		Msg("signer created")
	return nil
}

// Update applies a partial update. Rank uniqueness is checked against the
// region the signer ends up in.
func (r *Registry) Update(ctx context.Context, actorID, id string, update models.SignerUpdate) (*models.Signer, error) {
	if update.Empty() {
		return nil, models.Invalid("update", "no fields to update")
	}

	var rec events.Recorder
	var updated *models.Signer
	hasher := r.newHasher()
	err := r.store.InTx(ctx, func(tx *db.Store) error {
		rec.Reset()
		current, err := tx.Signers.Get(ctx, id)
		if err != nil {
			return err
		}
		updated, err = r.update(ctx, tx, &rec, hasher, actorID, current, update)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Flush(ctx, r.publisher)

	r.logger.Info().Str("signer_id", id).Str("scope", updated.Scope()).Msg("signer updated")
	return updated, nil
}

// Delete removes a signer. Approval tasks already snapshotted from it remain.
func (r *Registry) Delete(ctx context.Context, actorID, id string) error {
	var rec events.Recorder
	err := r.store.InTx(ctx, func(tx *db.Store) error {
		rec.Reset()
		signer, err := tx.Signers.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Signers.Delete(ctx, id); err != nil {
			return err
		}
		return rec.Record(ctx, tx.Events, models.NewEvent(
			models.EventTypeSignerDeleted, models.EntityTypeSigner, id, actorID, signer))
	})
	if err != nil {
		return err
	}
	rec.Flush(ctx, r.publisher)

	r.logger.Info().Str("signer_id", id).Msg("signer deleted")
	return nil
}

func (r *Registry) create(ctx context.Context, tx *db.Store, rec *events.Recorder, hasher *passwordHasher, actorID string, signer *models.Signer) error {
	if signer.Status == "" {
		signer.Status = models.SignerStatusActive
	}
	if err := r.checkRank(ctx, tx, signer); err != nil {
		return err
	}
	if err := tx.Signers.Create(ctx, signer); err != nil {
		return err
	}
	if signer.IsActive() {
		if err := r.ensureLogin(ctx, tx, hasher, signer); err != nil {
			return err
		}
	}
	return rec.Record(ctx, tx.Events, models.NewEvent(
		models.EventTypeSignerCreated, models.EntityTypeSigner, signer.ID, actorID, signer))
}

func (r *Registry) update(ctx context.Context, tx *db.Store, rec *events.Recorder, hasher *passwordHasher, actorID string, current *models.Signer, update models.SignerUpdate) (*models.Signer, error) {
	before := *current
	update.Apply(current)

	if err := r.checkRank(ctx, tx, current); err != nil {
		return nil, err
	}
	if err := tx.Signers.Update(ctx, current); err != nil {
		return nil, err
	}

	promoted := current.IsActive() && (!before.IsActive() || before.Email != current.Email)
	if promoted {
		if err := r.ensureLogin(ctx, tx, hasher, current); err != nil {
			return nil, err
		}
	}

	if err := rec.Record(ctx, tx.Events, models.NewEvent(
		models.EventTypeSignerUpdated, models.EntityTypeSigner, current.ID, actorID, current)); err != nil {
		return nil, err
	}
	return current, nil
}

// checkRank rejects a rank already held by another signer in the same region.
// Global signers are not rank-checked.
func (r *Registry) checkRank(ctx context.Context, tx *db.Store, signer *models.Signer) error {
	if signer.RegionID == nil {
		return nil
	}
	taken, err := tx.Signers.RankTaken(ctx, *signer.RegionID, signer.SigningOrder, signer.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewConflict("signing order %d already used in region %s", signer.SigningOrder, *signer.RegionID)
	}
	return nil
}

// ensureLogin makes sure a user exists for the signer's email and holds the
// provisioning role.
func (r *Registry) ensureLogin(ctx context.Context, tx *db.Store, hasher *passwordHasher, signer *models.Signer) error {
	user, err := tx.Users.GetByEmail(ctx, signer.Email)
	if err == nil {
		return tx.Users.AddRole(ctx, user.ID, r.provision.Role)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	hash, err := hasher.hash()
	if err != nil {
		return err
	}
	user = &models.User{
		Name:               signer.Name,
		Email:              signer.Email,
		PasswordHash:       hash,
		MustChangePassword: true,
		RegionID:           signer.RegionID,
		Roles:              models.NewRoleSet(r.provision.Role),
	}
	if err := tx.Users.Create(ctx, user); err != nil {
		return err
	}
	r.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("provisioned signer login")
	return nil
}

// passwordHasher computes the initial password hash at most once per call so
// transaction retries do not pay for bcrypt again.
type passwordHasher struct {
	password string
	cached   string
	done     bool
}

func (r *Registry) newHasher() *passwordHasher {
	return &passwordHasher{password: r.provision.InitialPassword}
}

func (h *passwordHasher) hash() (string, error) {
	if h.done || h.password == "" {
		return h.cached, nil
	}
	hash, err := auth.HashPassword(h.password)
	if err != nil {
		return "", err
	}
	h.cached, h.done = hash, true
	return hash, nil
}
