package references

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"aura/internal/sync"
	"aura/internal/validation"
	"aura/pkg/database/dbtest"
)

type recorder struct {
	mu     stdsync.Mutex
	events map[string][]sync.Event
}

func (r *recorder) Publish(userID string, ev sync.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]sync.Event{}
	}
	r.events[userID] = append(r.events[userID], ev)
}

func newResolver(t *testing.T) (*Resolver, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewResolver(NewRepo(dbtest.Open(t)), rec), rec
}

func TestResolveCreatesThenFinds(t *testing.T) {
	r, events := newResolver(t)
	ctx := context.Background()
	artist := MustKind("artist")

	first, err := r.Resolve(ctx, artist, "u1", "Claude Monet")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !first.Created || first.Reference.Name != "Claude Monet" {
		t.Fatalf("expected created Claude Monet, got %+v", first)
	}

	second, err := r.Resolve(ctx, artist, "u1", "Claude Monet")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.Created {
		t.Fatalf("expected second call to find, not create")
	}
	if second.Reference.ID != first.Reference.ID {
		t.Fatalf("expected same id %d, got %d", first.Reference.ID, second.Reference.ID)
	}

	if got := len(events.events["u1"]); got != 1 {
		t.Fatalf("expected one creation event, got %d", got)
	}
}

func TestResolveIsCaseInsensitiveAndKeepsStoredName(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()
	artist := MustKind("artist")

	orig, err := r.Resolve(ctx, artist, "u1", "claude monet")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Resolve(ctx, artist, "u1", "  Claude MONET ")
	if err != nil {
		t.Fatal(err)
	}
	if got.Created || got.Reference.ID != orig.Reference.ID {
		t.Fatalf("expected lookup of existing row, got %+v", got)
	}
	if got.Reference.Name != "claude monet" {
		t.Fatalf("expected stored casing, got %q", got.Reference.Name)
	}
}

func TestResolveScopes(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	a, _ := r.Resolve(ctx, MustKind("collection"), "u1", "Impressionnistes")
	b, _ := r.Resolve(ctx, MustKind("collection"), "u2", "Impressionnistes")
	if !a.Created || !b.Created || a.Reference.ID == b.Reference.ID {
		t.Fatalf("per-user kinds must not share rows across users: %+v %+v", a, b)
	}

	g1, _ := r.Resolve(ctx, MustKind("technique"), "u1", "Sfumato")
	g2, _ := r.Resolve(ctx, MustKind("technique"), "u2", "sfumato")
	if !g1.Created || g2.Created || g1.Reference.ID != g2.Reference.ID {
		t.Fatalf("global kinds must share rows across users: %+v %+v", g1, g2)
	}
}

func TestResolveValidation(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	cases := []struct {
		name string
		kind string
		in   string
		tag  string
	}{
		{"empty", "artist", "", "required"},
		{"whitespace", "artist", "   \t", "required"},
		{"markup only", "tag", "<b></b>", "required"},
		{"too long", "tag", strings.Repeat("a", 101), "max"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(ctx, MustKind(tc.kind), "u1", tc.in)
			var ve *validation.RequestValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			f, ok := ve.Field("name")
			if !ok || f.Tag != tc.tag {
				t.Fatalf("expected name/%s error, got %+v", tc.tag, ve.Fields)
			}
		})
	}
}

func TestResolveConcurrentSameName(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()
	artist := MustKind("artist")

	const n = 12
	var wg stdsync.WaitGroup
	results := make([]*Resolution, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(ctx, artist, "u1", "Berthe Morisot")
		}(i)
	}
	wg.Wait()

	created := 0
	var id int64
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if id == 0 {
			id = results[i].Reference.ID
		}
		if results[i].Reference.ID != id {
			t.Fatalf("expected every caller to get id %d, got %d", id, results[i].Reference.ID)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one created=true, got %d", created)
	}
}

func TestResolveAllSkipsBlanksAndRepeats(t *testing.T) {
	r, _ := newResolver(t)
	refs, err := r.ResolveAll(context.Background(), MustKind("tag"), "u1",
		[]string{"paysage", "", "Paysage", "marine", "  "})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, len(refs))
	for _, ref := range refs {
		got = append(got, ref.Name)
	}
	if diff := cmp.Diff([]string{"paysage", "marine"}, got); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"  Claude Monet  ":         "Claude Monet",
		"<b>Gilbert</b> & George":  "Gilbert & George",
		"<script>x()</script>Tate": "Tate",
	}
	for in, want := range cases {
		if got := CleanName(in); got != want {
			t.Fatalf("CleanName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()
	data, err := DefaultSeed()
	if err != nil {
		t.Fatal(err)
	}
	n, err := Seed(ctx, r, data)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(data["arttype"])+len(data["support"])+len(data["technique"]) {
		t.Fatalf("unexpected created count %d", n)
	}
	n, err = Seed(ctx, r, data)
	if err != nil || n != 0 {
		t.Fatalf("second seed: expected 0 created, got %d (%v)", n, err)
	}
	if _, err := Seed(ctx, r, SeedData{"artist": {"x"}}); err == nil {
		t.Fatalf("expected error seeding a per-user kind")
	}
}

func TestRenameAndDeletePublish(t *testing.T) {
	r, rec := newResolver(t)
	ctx := context.Background()
	col := MustKind("collection")

	res, err := r.Resolve(ctx, col, "u1", "Salon")
	if err != nil {
		t.Fatal(err)
	}
	ref, err := r.Rename(ctx, col, "u1", res.Reference.ID, "  Grand   Salon ")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Name != "Grand Salon" {
		t.Fatalf("name not cleaned: %q", ref.Name)
	}
	if _, err := r.Rename(ctx, col, "u1", 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, col, "u1", res.Reference.ID); err != nil {
		t.Fatal(err)
	}

	var types []string
	for _, ev := range rec.events["u1"] {
		types = append(types, ev.Type)
	}
	if diff := cmp.Diff([]string{"reference.created", "reference.renamed", "reference.deleted"}, types); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}
