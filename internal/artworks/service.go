package artworks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"aura/internal/logging"
	"aura/internal/references"
	"aura/internal/sync"
	"aura/internal/validation"
	"aura/pkg/models"
)

// ErrUnknownReference is returned when an input points at a related entity
// the caller cannot see.
var ErrUnknownReference = errors.New("unknown related entity")

// Input is the writable part of an artwork.
type Input struct {
	Title                string   `json:"title" validate:"max=300"`
	CreationYear         *int     `json:"creation_year" validate:"omitempty,min=-3000,max=2100"`
	OriginCountry        string   `json:"origin_country" validate:"max=100"`
	ArtTypeID            *int64   `json:"art_type_id" validate:"omitempty,gt=0"`
	SupportID            *int64   `json:"support_id" validate:"omitempty,gt=0"`
	TechniqueID          *int64   `json:"technique_id" validate:"omitempty,gt=0"`
	Height               *float64 `json:"height" validate:"omitempty,gte=0"`
	Width                *float64 `json:"width" validate:"omitempty,gte=0"`
	Depth                *float64 `json:"depth" validate:"omitempty,gte=0"`
	Weight               *float64 `json:"weight" validate:"omitempty,gte=0"`
	AcquisitionDate      *string  `json:"acquisition_date" validate:"omitempty,datetime=2006-01-02"`
	AcquisitionPlace     string   `json:"acquisition_place" validate:"max=200"`
	Price                *float64 `json:"price" validate:"omitempty,gte=0"`
	Provenance           string   `json:"provenance"`
	IsFramed             bool     `json:"is_framed"`
	IsBorrowed           bool     `json:"is_borrowed"`
	IsSigned             bool     `json:"is_signed"`
	IsAcquired           bool     `json:"is_acquired"`
	CurrentLocation      string   `json:"current_location" validate:"omitempty,oneof=domicile stockage pretee restauration encadrement restitution vente vendue perdue volee autre"`
	Owners               string   `json:"owners" validate:"max=500"`
	ContextualReferences string   `json:"contextual_references"`
	Notes                string   `json:"notes"`
	LastExhibited        *string  `json:"last_exhibited" validate:"omitempty,datetime=2006-01-02"`
	ArtistIDs            []int64  `json:"artist_ids" validate:"dive,gt=0"`
	CollectionIDs        []int64  `json:"collection_ids" validate:"dive,gt=0"`
	ExhibitionIDs        []int64  `json:"exhibition_ids" validate:"dive,gt=0"`
	// Tags are names; unknown ones are created in the caller's scope.
	Tags []string `json:"tags"`
}

type Service struct {
	Repo     *Repo
	Resolver *references.Resolver
	Events   sync.Publisher
	Now      func() time.Time
}

func NewService(repo *Repo, resolver *references.Resolver, events sync.Publisher) *Service {
	return &Service{Repo: repo, Resolver: resolver, Events: events, Now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*models.Artwork, error) {
	tagIDs, err := s.prepare(ctx, userID, &in)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	a := &models.Artwork{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
	apply(a, in, now)

	if err := s.Repo.Create(ctx, a, tagIDs); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("artwork_id", a.ID).Str("user_id", userID).Msg("artwork created")
	s.publish(userID, "artwork.created", a)
	return s.Repo.Get(ctx, userID, a.ID)
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*models.Artwork, error) {
	existing, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	tagIDs, err := s.prepare(ctx, userID, &in)
	if err != nil {
		return nil, err
	}
	apply(existing, in, s.Now().UTC())
	if err := s.Repo.Update(ctx, existing, tagIDs); err != nil {
		return nil, err
	}
	s.publish(userID, "artwork.updated", existing)
	return s.Repo.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.Repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.publish(userID, "artwork.deleted", &models.Artwork{ID: id})
	return nil
}

// prepare validates in, checks every related id and resolves tag names.
func (s *Service) prepare(ctx context.Context, userID string, in *Input) ([]int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.CurrentLocation == "" {
		in.CurrentLocation = "domicile"
	}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := checkFinite(in); err != nil {
		return nil, err
	}

	refs := s.Resolver.Repo
	perUser := []struct {
		kind string
		ids  []int64
	}{
		{"artist", in.ArtistIDs},
		{"collection", in.CollectionIDs},
		{"exhibition", in.ExhibitionIDs},
	}
	for _, p := range perUser {
		ids := uniqueIDs(p.ids)
		k := references.MustKind(p.kind)
		n, err := refs.CountOwned(ctx, s.Repo.DB, k, k.ScopeFor(userID), ids)
		if err != nil {
			return nil, err
		}
		if n != len(ids) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReference, p.kind)
		}
	}
	global := []struct {
		kind string
		id   *int64
	}{
		{"arttype", in.ArtTypeID},
		{"support", in.SupportID},
		{"technique", in.TechniqueID},
	}
	for _, g := range global {
		if g.id == nil {
			continue
		}
		k := references.MustKind(g.kind)
		n, err := refs.CountOwned(ctx, s.Repo.DB, k, k.ScopeFor(userID), []int64{*g.id})
		if err != nil {
			return nil, err
		}
		if n != 1 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReference, g.kind)
		}
	}

	tags, err := s.Resolver.ResolveAll(ctx, references.MustKind("tag"), userID, in.Tags)
	if err != nil {
		return nil, err
	}
	tagIDs := make([]int64, 0, len(tags))
	for _, t := range tags {
		tagIDs = append(tagIDs, t.ID)
	}
	return tagIDs, nil
}

// checkFinite rejects Inf and NaN, which gte=0 lets through and JSON
// cannot encode.
func checkFinite(in *Input) error {
	nums := []struct {
		field string
		v     *float64
	}{
		{"height", in.Height},
		{"width", in.Width},
		{"depth", in.Depth},
		{"weight", in.Weight},
		{"price", in.Price},
	}
	var fields []validation.FieldError
	for _, n := range nums {
		if n.v != nil && (math.IsInf(*n.v, 0) || math.IsNaN(*n.v)) {
			fields = append(fields, validation.FieldError{
				Field:   n.field,
				Tag:     "finite",
				Message: n.field + " must be a finite number",
			})
		}
	}
	if len(fields) > 0 {
		return &validation.RequestValidationError{Fields: fields}
	}
	return nil
}

func apply(a *models.Artwork, in Input, now time.Time) {
	a.Title = in.Title
	a.CreationYear = in.CreationYear
	a.OriginCountry = strings.TrimSpace(in.OriginCountry)
	a.ArtTypeID, a.SupportID, a.TechniqueID = in.ArtTypeID, in.SupportID, in.TechniqueID
	a.Height, a.Width, a.Depth, a.Weight = in.Height, in.Width, in.Depth, in.Weight
	a.AcquisitionDate = in.AcquisitionDate
	a.AcquisitionPlace = strings.TrimSpace(in.AcquisitionPlace)
	a.Price = in.Price
	a.Provenance = in.Provenance
	a.IsFramed, a.IsBorrowed, a.IsSigned, a.IsAcquired = in.IsFramed, in.IsBorrowed, in.IsSigned, in.IsAcquired
	a.CurrentLocation = in.CurrentLocation
	a.Owners = in.Owners
	a.ContextualReferences = in.ContextualReferences
	a.Notes = in.Notes
	a.LastExhibited = in.LastExhibited
	a.ArtistIDs = uniqueIDs(in.ArtistIDs)
	a.CollectionIDs = uniqueIDs(in.CollectionIDs)
	a.ExhibitionIDs = uniqueIDs(in.ExhibitionIDs)
	a.UpdatedAt = now
}

func (s *Service) publish(userID, typ string, a *models.Artwork) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(userID, sync.Event{
		Type: typ,
		Kind: "artwork",
		ID:   a.ID,
		Name: a.Title,
		At:   s.Now().UTC(),
	})
}
