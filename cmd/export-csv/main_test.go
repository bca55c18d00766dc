package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"aura/internal/artworks"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
	"aura/pkg/models"
)

func seeded(t *testing.T) *exporter {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	ctx := context.Background()
	resolver := references.NewResolver(references.NewRepo(db), nil)
	svc := artworks.NewService(artworks.NewRepo(db), resolver, nil)

	monet, err := resolver.Resolve(ctx, references.MustKind("artist"), "u1", "Claude Monet")
	if err != nil {
		t.Fatal(err)
	}
	oil, err := resolver.Resolve(ctx, references.MustKind("technique"), "u1", "Huile")
	if err != nil {
		t.Fatal(err)
	}
	year, price := 1916, 1200.5
	_, err = svc.Create(ctx, "u1", artworks.Input{
		Title:        "Nymphéas",
		CreationYear: &year,
		Price:        &price,
		ArtistIDs:    []int64{monet.Reference.ID},
		TechniqueID:  &oil.Reference.ID,
		Tags:         []string{"jardin", "eau"},
		IsSigned:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &exporter{userID: "u1", artworks: artworks.NewRepo(db), names: newNameCache(references.NewRepo(db))}
}

func TestWriteCSV(t *testing.T) {
	ex := seeded(t)
	var buf bytes.Buffer
	n, err := ex.writeCSV(context.Background(), &buf)
	if err != nil || n != 1 {
		t.Fatalf("writeCSV: n=%d err=%v", n, err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	got := map[string]string{}
	for i, col := range rows[0] {
		got[col] = rows[1][i]
	}
	want := map[string]string{
		"title":     "Nymphéas",
		"artists":   "Claude Monet",
		"tags":      "eau;jardin",
		"technique": "Huile",
		"year":      "1916",
		"price":     "1200.5",
		"location":  "domicile",
		"signed":    "true",
	}
	for col, v := range want {
		if got[col] != v {
			t.Errorf("%s = %q, want %q", col, got[col], v)
		}
	}
	if strings.TrimSpace(got["id"]) == "" {
		t.Error("id column is empty")
	}
}

func TestWriteJSON(t *testing.T) {
	ex := seeded(t)
	var buf bytes.Buffer
	if _, err := ex.writeJSON(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	var items []models.Artwork
	if err := json.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if diff := cmp.Diff([]string{"eau", "jardin"}, items[0].Tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
}
