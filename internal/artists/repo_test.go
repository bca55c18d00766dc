package artists

import (
	"context"
	"errors"
	"testing"

	"aura/internal/references"
	"aura/pkg/database/dbtest"
	"aura/pkg/models"
)

func TestUpdateRollsBackRenameWhenDetailsFail(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewRepo(db)
	refs := references.NewRepo(db)
	res, err := references.NewResolver(refs, nil).Resolve(ctx, artistKind, "u1", "Berthe Morisot")
	if err != nil {
		t.Fatal(err)
	}
	id := res.Reference.ID

	_, err = db.ExecContext(ctx, `
		CREATE TRIGGER reject_biography BEFORE UPDATE OF biography ON artists
		WHEN NEW.biography = 'reject'
		BEGIN SELECT RAISE(ABORT, 'biography rejected'); END`)
	if err != nil {
		t.Fatal(err)
	}

	err = repo.Update(ctx, refs, "u1", models.Artist{ID: id, Name: "Berthe Marie Morisot", Biography: "reject"})
	if err == nil {
		t.Fatal("expected the details update to fail")
	}
	a, err := repo.Get(ctx, "u1", id)
	if err != nil || a == nil {
		t.Fatalf("get: %v", err)
	}
	if a.Name != "Berthe Morisot" {
		t.Fatalf("rename leaked past the failed update: %q", a.Name)
	}

	if err := repo.Update(ctx, refs, "u1", models.Artist{ID: id, Name: "Berthe Marie Morisot", Nationality: "Française"}); err != nil {
		t.Fatal(err)
	}
	a, _ = repo.Get(ctx, "u1", id)
	if a.Name != "Berthe Marie Morisot" || a.Nationality != "Française" {
		t.Fatalf("update not applied: %+v", a)
	}
}

func TestUpdateUnknownArtist(t *testing.T) {
	db := dbtest.Open(t)
	err := NewRepo(db).Update(context.Background(), references.NewRepo(db), "u1", models.Artist{ID: 99, Name: "Nobody"})
	if !errors.Is(err, references.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
