package main

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"aura/internal/artworks"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
)

func newImporter(t *testing.T) *importer {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	resolver := references.NewResolver(references.NewRepo(db), nil)
	return &importer{
		userID:   "u1",
		resolver: resolver,
		artworks: artworks.NewService(artworks.NewRepo(db), resolver, nil),
	}
}

func TestImportRefsIsIdempotent(t *testing.T) {
	imp := newImporter(t)
	ctx := context.Background()
	data := "kind,name\nartist,Claude Monet\nartist,claude monet\nunicorn,x\ntag,paysage\n"

	st, err := imp.importRefs(ctx, strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(stats{created: 2, existing: 1, skipped: 1}, st, cmp.AllowUnexported(stats{})); diff != "" {
		t.Fatalf("first run (-want +got):\n%s", diff)
	}

	st, err = imp.importRefs(ctx, strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if st.created != 0 || st.existing != 3 {
		t.Fatalf("second run should create nothing, got %+v", st)
	}
}

func TestImportArtworks(t *testing.T) {
	imp := newImporter(t)
	ctx := context.Background()
	data := strings.Join([]string{
		"title,artists,tags,technique,year,location,price",
		`Nymphéas,Claude Monet;Claude Monet,eau;jardin,Huile,1916,domicile,"1200,50"`,
		",Sans titre,,,,,",
		"Le Berceau,Berthe Morisot,,,abc,,",
	}, "\n")

	st, err := imp.importArtworks(ctx, strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if st.created != 1 || st.skipped != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}

	items, _, err := imp.artworks.Repo.List(ctx, "u1", artworks.ListQuery{})
	if err != nil || len(items) != 1 {
		t.Fatalf("list: %v %d", err, len(items))
	}
	a := items[0]
	if len(a.ArtistIDs) != 1 || a.TechniqueID == nil || a.Price == nil || *a.Price != 1200.5 {
		t.Fatalf("unexpected artwork %+v", a)
	}
	if diff := cmp.Diff([]string{"eau", "jardin"}, a.Tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
}
