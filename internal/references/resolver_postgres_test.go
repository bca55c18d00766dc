//go:build integration

package references

import (
	"context"
	stdsync "sync"
	"testing"

	"aura/pkg/database/dbtest"
)

// go test -tags integration ./internal/references/...

func TestPostgresResolveRace(t *testing.T) {
	db := dbtest.OpenPostgres(t)
	r := NewResolver(NewRepo(db), nil)
	ctx := context.Background()
	artist := MustKind("artist")

	const n = 24
	var wg stdsync.WaitGroup
	results := make([]*Resolution, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// alternate case so every insert computes the same name_key
			name := "Berthe Morisot"
			if i%2 == 1 {
				name = "BERTHE MORISOT"
			}
			results[i], errs[i] = r.Resolve(ctx, artist, "u1", name)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if results[i].Reference.ID != results[0].Reference.ID {
			t.Fatalf("caller %d got id %d, want %d", i, results[i].Reference.ID, results[0].Reference.ID)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one created=true, got %d", created)
	}
}

func TestPostgresSuggestTags(t *testing.T) {
	db := dbtest.OpenPostgres(t)
	r := NewResolver(NewRepo(db), nil)
	ctx := context.Background()
	tag := MustKind("tag")

	for _, name := range []string{"Paysage", "paysan", "portrait", "100%_pur"} {
		if _, err := r.Resolve(ctx, tag, "u1", name); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Repo.SuggestTags(ctx, tag.ScopeFor("u1"), "pays", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", got)
	}
	got, err = r.Repo.SuggestTags(ctx, tag.ScopeFor("u1"), "100%_", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "100%_pur" {
		t.Fatalf("wildcards should match literally, got %v", got)
	}
}
