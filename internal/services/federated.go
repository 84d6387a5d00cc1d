package services

import (
	"context"
	"errors"

	"gorm.io/datatypes"

	"github.com/whisperwall/secrets-backend/internal/models"
	"github.com/whisperwall/secrets-backend/internal/store"
)

// FederatedResolver maps a provider-issued subject id onto the canonical
// user record, creating it on first login. OAuth's redirect dance happens in
// the transport layer; by the time this runs the profile is already resolved.
type FederatedResolver struct {
	users *store.UserStore
}

func NewFederatedResolver(users *store.UserStore) *FederatedResolver {
	return &FederatedResolver{users: users}
}

// ResolveOrCreate finds the user for (provider, subjectID) or creates one
// with only that provider credential set. Two concurrent first logins for the
// same subject race on the provider unique index: the loser's insert fails
// with a duplicate conflict and is resolved by re-reading the winner's
// record, so exactly one user ever exists per subject.
func (r *FederatedResolver) ResolveOrCreate(ctx context.Context, provider store.Provider, subjectID string, profile []byte) (*models.User, error) {
	user, err := r.users.FindByProviderID(ctx, provider, subjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	fresh := &models.User{}
	switch provider {
	case store.ProviderGoogle:
		fresh.GoogleID = &subjectID
	case store.ProviderFacebook:
		fresh.FacebookID = &subjectID
	default:
		return nil, store.ErrUnknownProvider
	}
	if len(profile) > 0 {
		fresh.Profile = datatypes.JSON(profile)
	}

	created, err := r.users.Create(ctx, fresh)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrDuplicateSubjectID) {
		return nil, err
	}

	// Lost the race; the winner's record is authoritative.
	return r.users.FindByProviderID(ctx, provider, subjectID)
}
