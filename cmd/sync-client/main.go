package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"aura/internal/logging"
)

type AnyEvent map[string]any

func main() {
	api := flag.String("api", "http://localhost:8080", "API base URL")
	token := flag.String("token", os.Getenv("AURA_TOKEN"), "bearer token (default $AURA_TOKEN)")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})
	if *token == "" {
		log.Fatal().Msg("a token is required (-token or AURA_TOKEN)")
	}
	target, err := eventsURL(*api, *token)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid api url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err := run(ctx, target, *pretty)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second): // auto reconnect
		}
	}
}

func eventsURL(api, token string) (string, error) {
	u, err := url.Parse(api)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", api)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	q := url.Values{"token": {token}}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: "/ws", RawQuery: q.Encode()}).String(), nil
}

func run(ctx context.Context, target string, pretty bool) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			log.Fatal().Msg("token rejected by server")
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	log.Info().Msg("connected")

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed the connection")
			}
			return err
		}
		fmt.Println(format(msg, pretty))
	}
}

func format(msg []byte, pretty bool) string {
	if !pretty {
		return string(msg)
	}
	var obj AnyEvent
	if err := json.Unmarshal(msg, &obj); err != nil {
		// not JSON? print raw
		return string(msg)
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	return string(b)
}
