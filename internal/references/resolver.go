package references

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"aura/internal/logging"
	"aura/internal/metrics"
	"aura/internal/sync"
	"aura/internal/validation"
	"aura/pkg/database"
	"aura/pkg/models"
)

// Resolution is the outcome of a create-or-lookup.
type Resolution struct {
	Reference models.Reference
	Created   bool
}

// Resolver turns a user-typed name into a stored reference, creating it
// when no case-insensitive match exists in the caller's scope. Uniqueness
// is enforced by UNIQUE(scope, name_key); an insert that loses a race
// falls back to the lookup path and reports created=false.
type Resolver struct {
	Repo   *Repo
	Events sync.Publisher
}

func NewResolver(repo *Repo, events sync.Publisher) *Resolver {
	return &Resolver{Repo: repo, Events: events}
}

// ValidateName cleans raw and checks it against the kind's rules.
func ValidateName(k Kind, raw string) (string, error) {
	name := CleanName(raw)
	if err := validation.ValidateVar("name", name, "required,max="+strconv.Itoa(k.MaxLen)); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Resolver) Resolve(ctx context.Context, k Kind, userID, raw string) (*Resolution, error) {
	name, err := ValidateName(k, raw)
	if err != nil {
		metrics.RecordResolution(k.Name, "invalid")
		return nil, err
	}
	scope := k.ScopeFor(userID)
	key := NameKey(name)

	existing, err := r.Repo.FindByKey(ctx, k, scope, key)
	if err != nil {
		metrics.RecordResolution(k.Name, "error")
		return nil, err
	}
	if existing != nil {
		metrics.RecordResolution(k.Name, "found")
		return &Resolution{Reference: *existing}, nil
	}

	created, err := r.Repo.Insert(ctx, k, scope, name)
	if err == nil {
		metrics.RecordResolution(k.Name, "created")
		logging.Ctx(ctx).Info().Str("kind", k.Name).Int64("id", created.ID).Str("user_id", userID).Msg("reference created")
		r.publish(userID, "reference.created", created)
		return &Resolution{Reference: *created, Created: true}, nil
	}
	if !database.IsUniqueViolation(err) {
		metrics.RecordResolution(k.Name, "error")
		return nil, fmt.Errorf("insert %s: %w", k.Name, err)
	}

	// another request stored the same key between our lookup and insert
	winner, err := r.Repo.FindByKey(ctx, k, scope, key)
	if err != nil {
		metrics.RecordResolution(k.Name, "error")
		return nil, err
	}
	if winner == nil {
		metrics.RecordResolution(k.Name, "error")
		return nil, fmt.Errorf("insert %s: conflicting row vanished", k.Name)
	}
	metrics.RecordResolution(k.Name, "race")
	logging.Ctx(ctx).Debug().Str("kind", k.Name).Int64("id", winner.ID).Msg("reference insert lost race, returning existing")
	return &Resolution{Reference: *winner}, nil
}

// ResolveAll resolves names in order, skipping blanks and repeats.
func (r *Resolver) ResolveAll(ctx context.Context, k Kind, userID string, names []string) ([]models.Reference, error) {
	seen := make(map[int64]struct{}, len(names))
	out := make([]models.Reference, 0, len(names))
	for _, n := range names {
		if CleanName(n) == "" {
			continue
		}
		res, err := r.Resolve(ctx, k, userID, n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[res.Reference.ID]; dup {
			continue
		}
		seen[res.Reference.ID] = struct{}{}
		out = append(out, res.Reference)
	}
	return out, nil
}

// Rename validates raw and renames the reference in the caller's scope.
// ErrConflict when the new name collides with another entry.
func (r *Resolver) Rename(ctx context.Context, k Kind, userID string, id int64, raw string) (*models.Reference, error) {
	name, err := ValidateName(k, raw)
	if err != nil {
		return nil, err
	}
	scope := k.ScopeFor(userID)
	if err := r.Repo.Rename(ctx, nil, k, scope, id, name); err != nil {
		return nil, err
	}
	ref, err := r.Repo.Get(ctx, k, scope, id)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, ErrNotFound
	}
	r.publish(userID, "reference.renamed", ref)
	return ref, nil
}

// Delete removes the reference; artworks drop their links to it.
func (r *Resolver) Delete(ctx context.Context, k Kind, userID string, id int64) error {
	if err := r.Repo.Delete(ctx, k, k.ScopeFor(userID), id); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("kind", k.Name).Int64("id", id).Str("user_id", userID).Msg("reference deleted")
	r.publish(userID, "reference.deleted", &models.Reference{ID: id, Kind: k.Name})
	return nil
}

func (r *Resolver) publish(userID, typ string, ref *models.Reference) {
	if r.Events == nil || userID == "" {
		return
	}
	at := ref.CreatedAt
	if typ != "reference.created" {
		at = time.Now()
	}
	r.Events.Publish(userID, sync.Event{
		Type: typ,
		Kind: ref.Kind,
		ID:   ref.ID,
		Name: ref.Name,
		At:   at.UTC(),
	})
}
