package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/config"
	"aura/internal/logging"
	"aura/internal/references"
	"aura/pkg/database"
)

func main() {
	var (
		username   = flag.String("user", "", "owner username")
		refsIn     = flag.String("refs", "", "CSV with kind,name columns")
		artworksIn = flag.String("artworks", "", "CSV of artworks (title, artists, tags, technique, support, art_type, year, location, ...)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	if *username == "" || (*refsIn == "" && *artworksIn == "") {
		log.Fatal().Msg("usage: import-csv -user NAME [-refs refs.csv] [-artworks artworks.csv]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.MustOpen(cfg.Database)
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	u, err := auth.NewRepo(db).GetByUsername(ctx, *username)
	if err != nil || u == nil {
		log.Fatal().Err(err).Str("user", *username).Msg("unknown user")
	}

	resolver := references.NewResolver(references.NewRepo(db), nil)
	imp := &importer{
		userID:   u.ID,
		resolver: resolver,
		artworks: artworks.NewService(artworks.NewRepo(db), resolver, nil),
	}

	if *refsIn != "" {
		st, err := withFile(*refsIn, func(r io.Reader) (stats, error) { return imp.importRefs(ctx, r) })
		if err != nil {
			log.Fatal().Err(err).Msg("import references failed")
		}
		log.Info().Int("created", st.created).Int("existing", st.existing).Int("skipped", st.skipped).Msg("references imported")
	}
	if *artworksIn != "" {
		st, err := withFile(*artworksIn, func(r io.Reader) (stats, error) { return imp.importArtworks(ctx, r) })
		if err != nil {
			log.Fatal().Err(err).Msg("import artworks failed")
		}
		log.Info().Int("created", st.created).Int("skipped", st.skipped).Msg("artworks imported")
	}
}

type stats struct {
	created  int
	existing int
	skipped  int
}

type importer struct {
	userID   string
	resolver *references.Resolver
	artworks *artworks.Service
}

func withFile(path string, fn func(io.Reader) (stats, error)) (stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return stats{}, err
	}
	defer f.Close()
	return fn(f)
}

// importRefs resolves every (kind, name) row, so re-running a file only
// reports existing entries.
func (imp *importer) importRefs(ctx context.Context, in io.Reader) (stats, error) {
	var st stats
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	header, err := readHeader(r)
	if err != nil {
		return st, err
	}
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		line++
		k, ok := references.Lookup(strings.ToLower(valueAt(header, row, "kind")))
		name := valueAt(header, row, "name")
		if !ok || name == "" {
			log.Warn().Int("line", line).Msg("skipping row: unknown kind or empty name")
			st.skipped++
			continue
		}
		res, err := imp.resolver.Resolve(ctx, k, imp.userID, name)
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping row")
			st.skipped++
			continue
		}
		if res.Created {
			st.created++
		} else {
			st.existing++
		}
	}
}

// importArtworks creates one artwork per row. List columns (artists,
// collections, tags) are separated by ';'.
func (imp *importer) importArtworks(ctx context.Context, in io.Reader) (stats, error) {
	var st stats
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	header, err := readHeader(r)
	if err != nil {
		return st, err
	}
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		line++
		input, err := imp.rowInput(ctx, header, row)
		if err == nil {
			_, err = imp.artworks.Create(ctx, imp.userID, input)
		}
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping artwork row")
			st.skipped++
			continue
		}
		st.created++
	}
}

func (imp *importer) rowInput(ctx context.Context, header map[string]int, row []string) (artworks.Input, error) {
	in := artworks.Input{
		Title:            valueAt(header, row, "title"),
		OriginCountry:    valueAt(header, row, "origin_country"),
		AcquisitionPlace: valueAt(header, row, "acquisition_place"),
		Provenance:       valueAt(header, row, "provenance"),
		CurrentLocation:  strings.ToLower(valueAt(header, row, "location")),
		Notes:            valueAt(header, row, "notes"),
		Tags:             splitList(valueAt(header, row, "tags")),
		IsSigned:         parseBool(valueAt(header, row, "signed")),
		IsFramed:         parseBool(valueAt(header, row, "framed")),
	}
	if in.Title == "" {
		return in, errors.New("missing title")
	}

	var err error
	if in.CreationYear, err = parseInt(valueAt(header, row, "year")); err != nil {
		return in, fmt.Errorf("year: %w", err)
	}
	if in.Price, err = parseFloat(valueAt(header, row, "price")); err != nil {
		return in, fmt.Errorf("price: %w", err)
	}
	if in.Height, err = parseFloat(valueAt(header, row, "height")); err != nil {
		return in, fmt.Errorf("height: %w", err)
	}
	if in.Width, err = parseFloat(valueAt(header, row, "width")); err != nil {
		return in, fmt.Errorf("width: %w", err)
	}
	if d := valueAt(header, row, "acquisition_date"); d != "" {
		in.AcquisitionDate = &d
	}

	if in.ArtistIDs, err = imp.resolveIDs(ctx, "artist", splitList(valueAt(header, row, "artists"))); err != nil {
		return in, err
	}
	if in.CollectionIDs, err = imp.resolveIDs(ctx, "collection", splitList(valueAt(header, row, "collections"))); err != nil {
		return in, err
	}
	for col, dst := range map[string]**int64{
		"technique": &in.TechniqueID,
		"support":   &in.SupportID,
		"art_type":  &in.ArtTypeID,
	} {
		name := valueAt(header, row, col)
		if name == "" {
			continue
		}
		kind := strings.ReplaceAll(col, "_", "")
		ids, err := imp.resolveIDs(ctx, kind, []string{name})
		if err != nil {
			return in, err
		}
		*dst = &ids[0]
	}
	return in, nil
}

func (imp *importer) resolveIDs(ctx context.Context, kind string, names []string) ([]int64, error) {
	refs, err := imp.resolver.ResolveAll(ctx, references.MustKind(kind), imp.userID, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "oui", "x":
		return true
	}
	return false
}
