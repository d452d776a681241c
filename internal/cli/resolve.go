package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/leasedesk/internal/db"
	"github.com/tOgg1/leasedesk/internal/models"
)

func shortID(id string) string {
	const limit = 8
	if len(id) <= limit {
		return id
	}
	return id[:limit]
}

func findRegion(ctx context.Context, store *db.Store, ref string) (*models.Region, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("region name or ID required")
	}
	region, err := store.Regions.Lookup(ctx, ref)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return region, err
	}

	regions, listErr := store.Regions.List(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("failed to list regions: %w", listErr)
	}
	if len(regions) == 0 {
		return nil, &PreflightError{
			Message:  fmt.Sprintf("region '%s' not found (no regions registered yet)", ref),
			NextStep: "leasedesk region create <name>",
		}
	}
	return nil, fmt.Errorf("region '%s' not found. Example input: '%s' or '%s'", ref, regions[0].Name, shortID(regions[0].ID))
}

// findUser resolves ref as an email address when it contains '@', else as a user ID.
func findUser(ctx context.Context, store *db.Store, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("user email or ID required")
	}
	if strings.Contains(ref, "@") {
		return store.Users.GetByEmail(ctx, ref)
	}
	return store.Users.Get(ctx, ref)
}

func findSigner(ctx context.Context, store *db.Store, ref string) (*models.Signer, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("signer email or ID required")
	}
	if strings.Contains(ref, "@") {
		return store.Signers.GetByEmail(ctx, ref)
	}
	return store.Signers.Get(ctx, ref)
}

// resolveActor returns the user the command acts as: --as when given,
// otherwise the saved context.
func resolveActor(ctx context.Context, store *db.Store) (*models.User, error) {
	if actorFlag != "" {
		return findUser(ctx, store, actorFlag)
	}

	saved, err := contextStore().Load()
	if err != nil {
		return nil, err
	}
	if !saved.HasActor() {
		return nil, &PreflightError{
			Message:  "no acting user selected",
			Hint:     "select a user once with 'leasedesk use', or pass --as per command",
			NextStep: "leasedesk use ann@example.com",
		}
	}
	user, err := store.Users.Get(ctx, saved.ActorID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, &PreflightError{
			Message:  fmt.Sprintf("saved actor %s no longer exists", saved.String()),
			NextStep: "leasedesk use <email>",
		}
	}
	return user, err
}

// resolveRegionRef returns ref, or the saved default region when ref is empty.
func resolveRegionRef(ref string) (string, error) {
	if strings.TrimSpace(ref) != "" {
		return ref, nil
	}
	saved, err := contextStore().Load()
	if err != nil {
		return "", err
	}
	if !saved.HasRegion() {
		return "", &PreflightError{
			Message:  "region required",
			Hint:     "pass --region or set a default with 'leasedesk use --region'",
			NextStep: "leasedesk use --region North",
		}
	}
	return saved.RegionID, nil
}
