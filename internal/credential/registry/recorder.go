package registry

import (
	"context"
	"time"

	"persona/internal/auth/models"
	"persona/internal/identity"
)

// Recorder adapts the Store to the registration flow: it snapshots the
// profile submitted at signup into a DID record.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, id *identity.Identity, profile models.Profile) error {
	return r.store.Create(ctx, NewRecord(id, UserData{
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		DateOfBirth: profile.DateOfBirth,
		Country:     profile.Country,
	}, r.now()))
}
