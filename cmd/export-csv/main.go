package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/config"
	"aura/internal/logging"
	"aura/internal/references"
	"aura/pkg/database"
	"aura/pkg/models"
)

// header matches the columns import-csv understands, so an export can be
// re-imported into another account.
var header = []string{
	"id", "title", "artists", "collections", "tags", "technique", "support", "art_type",
	"year", "location", "price", "height", "width", "acquisition_date", "signed", "framed", "notes",
}

func main() {
	var (
		username = flag.String("user", "", "owner username")
		out      = flag.String("out", "data/artworks.csv", "output path")
		format   = flag.String("format", "csv", "csv or json")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	if *username == "" {
		log.Fatal().Msg("usage: export-csv -user NAME [-out PATH] [-format csv|json]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output dir failed")
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("create output failed")
	}
	defer f.Close()

	ex := &exporter{userID: u.ID, artworks: artworks.NewRepo(db), names: newNameCache(references.NewRepo(db))}
	var n int
	switch *format {
	case "csv":
		n, err = ex.writeCSV(ctx, f)
	case "json":
		n, err = ex.writeJSON(ctx, f)
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	log.Info().Int("artworks", n).Str("path", *out).Msg("export done")
}

type exporter struct {
	userID   string
	artworks *artworks.Repo
	names    *nameCache
}

func (ex *exporter) writeCSV(ctx context.Context, out io.Writer) (int, error) {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return 0, err
	}
	n := 0
	err := ex.artworks.ForExport(ctx, ex.userID, func(a *models.Artwork) error {
		row, err := ex.row(ctx, a)
		if err != nil {
			return err
		}
		n++
		return w.Write(row)
	})
	if err != nil {
		return n, err
	}
	w.Flush()
	return n, w.Error()
}

func (ex *exporter) writeJSON(ctx context.Context, out io.Writer) (int, error) {
	items := []*models.Artwork{}
	err := ex.artworks.ForExport(ctx, ex.userID, func(a *models.Artwork) error {
		items = append(items, a)
		return nil
	})
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return len(items), enc.Encode(items)
}

func (ex *exporter) row(ctx context.Context, a *models.Artwork) ([]string, error) {
	artists, err := ex.names.list(ctx, "artist", ex.userID, a.ArtistIDs)
	if err != nil {
		return nil, err
	}
	collections, err := ex.names.list(ctx, "collection", ex.userID, a.CollectionIDs)
	if err != nil {
		return nil, err
	}
	single := func(kind string, id *int64) (string, error) {
		if id == nil {
			return "", nil
		}
		return ex.names.name(ctx, kind, ex.userID, *id)
	}
	technique, err := single("technique", a.TechniqueID)
	if err != nil {
		return nil, err
	}
	support, err := single("support", a.SupportID)
	if err != nil {
		return nil, err
	}
	artType, err := single("arttype", a.ArtTypeID)
	if err != nil {
		return nil, err
	}

	return []string{
		a.ID,
		a.Title,
		strings.Join(artists, ";"),
		strings.Join(collections, ";"),
		strings.Join(a.Tags, ";"),
		technique,
		support,
		artType,
		formatInt(a.CreationYear),
		a.CurrentLocation,
		formatFloat(a.Price),
		formatFloat(a.Height),
		formatFloat(a.Width),
		deref(a.AcquisitionDate),
		strconv.FormatBool(a.IsSigned),
		strconv.FormatBool(a.IsFramed),
		a.Notes,
	}, nil
}

type nameCache struct {
	repo  *references.Repo
	names map[string]string
}

func newNameCache(repo *references.Repo) *nameCache {
	return &nameCache{repo: repo, names: map[string]string{}}
}

func (c *nameCache) name(ctx context.Context, kind, userID string, id int64) (string, error) {
	key := kind + ":" + strconv.FormatInt(id, 10)
	if n, ok := c.names[key]; ok {
		return n, nil
	}
	k := references.MustKind(kind)
	ref, err := c.repo.Get(ctx, k, k.ScopeFor(userID), id)
	if err != nil {
		return "", err
	}
	n := ""
	if ref != nil {
		n = ref.Name
	}
	c.names[key] = n
	return n, nil
}

func (c *nameCache) list(ctx context.Context, kind, userID string, ids []int64) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := c.name(ctx, kind, userID, id)
		if err != nil {
			return nil, err
		}
		if n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
