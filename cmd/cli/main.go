package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"aura/internal/logging"
	"aura/internal/widget"
	"aura/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type refListResponse struct {
	Items []models.Reference `json:"items"`
}

type artworkListResponse struct {
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []*models.Artwork `json:"items"`
}

type session struct {
	baseURL   string
	tokenPath string
	http      *http.Client
}

func main() {
	logging.Init(logging.Config{Level: "info", Format: "console"})

	global := flag.NewFlagSet("aura", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("parse flags")
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	s := &session{
		baseURL:   strings.TrimRight(*baseURL, "/"),
		tokenPath: *tokenPath,
		http:      &http.Client{Timeout: 15 * time.Second},
	}

	switch cmd {
	case "auth":
		s.handleAuth(ctx, sub, rest)
	case "refs":
		s.handleRefs(ctx, sub, rest)
	case "tags":
		s.handleTags(ctx, sub, rest)
	case "artworks":
		s.handleArtworks(ctx, sub, rest)
	case "notes":
		s.handleNotes(ctx, sub, rest)
	case "watch":
		s.handleWatch()
	default:
		printUsage()
		os.Exit(1)
	}
}

func (s *session) handleAuth(ctx context.Context, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal().Msg("email and password are required")
		}
		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := s.doJSON(ctx, http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
			log.Fatal().Err(err).Msg("login failed")
		}
		if err := saveToken(s.tokenPath, resp.Token); err != nil {
			log.Fatal().Err(err).Msg("save token")
		}
		fmt.Println("logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal().Msg("username, email, and password are required")
		}
		payload := map[string]string{"username": *username, "email": *email, "password": *password}
		var resp authResponse
		if err := s.doJSON(ctx, http.MethodPost, "/auth/register", "", payload, &resp); err != nil {
			log.Fatal().Err(err).Msg("register failed")
		}
		if err := saveToken(s.tokenPath, resp.Token); err != nil {
			log.Fatal().Err(err).Msg("save token")
		}
		fmt.Println("registered and logged in")
	case "logout":
		if tok, err := readToken(s.tokenPath); err == nil && tok != "" {
			// revoke server side too; a stale file is still removed below
			_ = s.doJSON(ctx, http.MethodPost, "/auth/logout", tok, nil, nil)
		}
		if err := clearToken(s.tokenPath); err != nil {
			log.Fatal().Err(err).Msg("logout failed")
		}
		fmt.Println("logged out")
	default:
		log.Fatal().Msg("usage: aura auth <login|register|logout>")
	}
}

func (s *session) handleRefs(ctx context.Context, sub string, args []string) {
	token := mustToken(s.tokenPath)
	switch sub {
	case "list":
		fs := flag.NewFlagSet("refs list", flag.ExitOnError)
		kind := fs.String("kind", "artist", "entity type")
		q := fs.String("q", "", "name filter")
		_ = fs.Parse(args)

		refs, err := s.listRefs(ctx, token, *kind, *q)
		if err != nil {
			log.Fatal().Err(err).Msg("list failed")
		}
		for _, r := range refs {
			fmt.Printf("%6d  %s\n", r.ID, r.Name)
		}
	case "create":
		fs := flag.NewFlagSet("refs create", flag.ExitOnError)
		kind := fs.String("kind", "artist", "entity type")
		name := fs.String("name", "", "name to select or create")
		_ = fs.Parse(args)

		ctl, err := s.selectOrCreate(ctx, token, *kind, false, []string{*name})
		if err != nil {
			log.Fatal().Err(err).Msg("create failed")
		}
		for _, o := range ctl.Selected() {
			fmt.Printf("selected %s %s (%s)\n", *kind, o.Label, o.ID)
		}
	default:
		log.Fatal().Msg("usage: aura refs <list|create>")
	}
}

// selectOrCreate drives the same dialog the web form uses: the control is
// populated from the server, then each name goes through the creation
// prompt and lands selected in the control.
func (s *session) selectOrCreate(ctx context.Context, token, kind string, multiple bool, names []string) (*widget.Control, error) {
	existing, err := s.listRefs(ctx, token, kind, "")
	if err != nil {
		return nil, err
	}
	ctl := widget.NewControl(kind, kind, "/ajax/"+kind+"/create", multiple)
	for _, r := range existing {
		ctl.Add(widget.Option{ID: strconv.FormatInt(r.ID, 10), Label: r.Name})
	}

	client, err := widget.NewClient(s.baseURL)
	if err != nil {
		return nil, err
	}
	client.Token = token

	var failed error
	dialog := widget.NewDialog(client)
	dialog.OnError = func(_ *widget.Control, err error) { failed = err }

	for _, name := range names {
		if err := dialog.OpenCreation(ctl); err != nil {
			return nil, err
		}
		p, err := dialog.Submit(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		<-p.Done()
		if _, err := p.Result(); err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
	}
	if failed != nil {
		return nil, failed
	}
	return ctl, nil
}

func (s *session) handleTags(ctx context.Context, sub string, args []string) {
	token := mustToken(s.tokenPath)
	switch sub {
	case "suggest":
		fs := flag.NewFlagSet("tags suggest", flag.ExitOnError)
		text := fs.String("text", "", "tag field contents, e.g. \"paysage, impr\"")
		_ = fs.Parse(args)

		term := widget.CurrentTerm(*text)
		if len([]rune(term)) < widget.MinTermLength {
			fmt.Println("(term too short)")
			return
		}
		client, err := widget.NewClient(s.baseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("client")
		}
		client.Token = token
		names, err := client.Suggest(ctx, term)
		if err != nil {
			log.Fatal().Err(err).Msg("suggest failed")
		}
		for _, n := range names {
			fmt.Println(n)
		}
	default:
		log.Fatal().Msg("usage: aura tags suggest -text <value>")
	}
}

func (s *session) handleArtworks(ctx context.Context, sub string, args []string) {
	token := mustToken(s.tokenPath)
	switch sub {
	case "list":
		fs := flag.NewFlagSet("artworks list", flag.ExitOnError)
		q := fs.String("q", "", "search")
		location := fs.String("location", "", "location filter")
		tag := fs.String("tag", "", "tag filter")
		page := fs.Int("page", 1, "page")
		_ = fs.Parse(args)

		u := url.Values{}
		u.Set("q", *q)
		u.Set("location", *location)
		u.Set("tag", *tag)
		u.Set("page", strconv.Itoa(*page))
		var resp artworkListResponse
		if err := s.doJSON(ctx, http.MethodGet, "/api/artworks?"+u.Encode(), token, nil, &resp); err != nil {
			log.Fatal().Err(err).Msg("list failed")
		}
		for _, a := range resp.Items {
			fmt.Printf("%s  %-40s  %-12s  %s\n", a.ID, a.DisplayTitle(), a.CurrentLocation, strings.Join(a.Tags, ", "))
		}
		fmt.Printf("page %d, %d total\n", resp.Page, resp.Total)
	case "add":
		fs := flag.NewFlagSet("artworks add", flag.ExitOnError)
		title := fs.String("title", "", "title")
		artists := fs.String("artists", "", "comma-separated artist names (created when missing)")
		technique := fs.String("technique", "", "technique name (created when missing)")
		tags := fs.String("tags", "", "comma-separated tags")
		location := fs.String("location", "domicile", "current location")
		_ = fs.Parse(args)

		payload := map[string]any{
			"title":            *title,
			"current_location": *location,
			"tags":             widget.SplitTags(*tags),
		}
		if names := widget.SplitTags(*artists); len(names) > 0 {
			ctl, err := s.selectOrCreate(ctx, token, "artist", true, names)
			if err != nil {
				log.Fatal().Err(err).Msg("artists")
			}
			payload["artist_ids"] = selectedIDs(ctl)
		}
		if strings.TrimSpace(*technique) != "" {
			ctl, err := s.selectOrCreate(ctx, token, "technique", false, []string{*technique})
			if err != nil {
				log.Fatal().Err(err).Msg("technique")
			}
			if ids := selectedIDs(ctl); len(ids) == 1 {
				payload["technique_id"] = ids[0]
			}
		}

		var created models.Artwork
		if err := s.doJSON(ctx, http.MethodPost, "/api/artworks", token, payload, &created); err != nil {
			log.Fatal().Err(err).Msg("create failed")
		}
		fmt.Printf("created %s (%s)\n", created.DisplayTitle(), created.ID)
	case "suggest":
		var resp struct {
			Artwork *models.Artwork `json:"artwork"`
		}
		if err := s.doJSON(ctx, http.MethodGet, "/api/artworks/suggestion", token, nil, &resp); err != nil {
			log.Fatal().Err(err).Msg("suggestion failed")
		}
		if resp.Artwork == nil {
			fmt.Println("nothing to rotate right now")
			return
		}
		fmt.Printf("how about hanging %q (%s)?\n", resp.Artwork.DisplayTitle(), resp.Artwork.ID)
	default:
		log.Fatal().Msg("usage: aura artworks <list|add|suggest>")
	}
}

func (s *session) handleNotes(ctx context.Context, sub string, args []string) {
	token := mustToken(s.tokenPath)
	switch sub {
	case "list":
		fs := flag.NewFlagSet("notes list", flag.ExitOnError)
		q := fs.String("q", "", "search")
		favorites := fs.Bool("favorites", false, "favorites only")
		_ = fs.Parse(args)

		u := url.Values{}
		u.Set("q", *q)
		u.Set("favorites", strconv.FormatBool(*favorites))
		var resp struct {
			Items []models.Note `json:"items"`
		}
		if err := s.doJSON(ctx, http.MethodGet, "/api/notes?"+u.Encode(), token, nil, &resp); err != nil {
			log.Fatal().Err(err).Msg("list failed")
		}
		for _, n := range resp.Items {
			star := " "
			if n.IsFavorite {
				star = "*"
			}
			fmt.Printf("%s %s  %s\n", star, n.ID, n.Title)
		}
	case "add":
		fs := flag.NewFlagSet("notes add", flag.ExitOnError)
		title := fs.String("title", "", "title")
		content := fs.String("content", "", "content")
		_ = fs.Parse(args)

		var n models.Note
		if err := s.doJSON(ctx, http.MethodPost, "/api/notes", token, map[string]string{"title": *title, "content": *content}, &n); err != nil {
			log.Fatal().Err(err).Msg("create failed")
		}
		fmt.Printf("created note %s (%s)\n", n.Title, n.ID)
	default:
		log.Fatal().Msg("usage: aura notes <list|add>")
	}
}

func (s *session) handleWatch() {
	token := mustToken(s.tokenPath)
	wsURL, err := websocketURL(s.baseURL, "/ws")
	if err != nil {
		log.Fatal().Err(err).Msg("ws url")
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("ws dial")
	}
	defer conn.Close()
	fmt.Println("watching catalogue events (ctrl-c to stop)")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatal().Err(err).Msg("ws read")
		}
		fmt.Println(string(msg))
	}
}

func (s *session) listRefs(ctx context.Context, token, kind, q string) ([]models.Reference, error) {
	u := url.Values{}
	u.Set("q", q)
	u.Set("limit", "500")
	var resp refListResponse
	if err := s.doJSON(ctx, http.MethodGet, "/api/references/"+url.PathEscape(kind)+"?"+u.Encode(), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func selectedIDs(ctl *widget.Control) []int64 {
	var out []int64
	for _, o := range ctl.Selected() {
		if id, err := strconv.ParseInt(o.ID, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (s *session) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, path, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.aura-token.json"
	}
	return filepath.Join(home, ".aura", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatal().Err(err).Msg("token not found, please login")
	}
	if token == "" {
		log.Fatal().Msg("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}

func printUsage() {
	fmt.Println("aura [-api URL] [-token PATH] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  refs list|create       -kind artist|collection|exhibition|tag|arttype|support|technique")
	fmt.Println("  tags suggest")
	fmt.Println("  artworks list|add|suggest")
	fmt.Println("  notes list|add")
	fmt.Println("  watch")
}
