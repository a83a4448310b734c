package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/freekieb7/keel/http"
	"github.com/freekieb7/keel/telemetry"
)

const serviceName = "keel-example"

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userStore struct {
	mu    sync.RWMutex
	next  int
	users map[string]user
}

func (s *userStore) get(req *http.Request) http.Responder {
	s.mu.RLock()
	u, ok := s.users[req.Param("id")]
	s.mu.RUnlock()
	if !ok {
		return http.StatusNotFound
	}
	return jsonResponse(http.StatusOK, u)
}

func (s *userStore) create(req *http.Request) http.Responder {
	var in struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Body, &in); err != nil || in.Name == "" {
		return http.Text("expected a JSON object with a name").WithStatus(http.StatusBadRequest)
	}

	s.mu.Lock()
	s.next++
	u := user{ID: strconv.Itoa(s.next), Name: in.Name}
	s.users[u.ID] = u
	s.mu.Unlock()

	return jsonResponse(http.StatusCreated, u).WithHeader(http.HeaderLocation, "/users/"+u.ID)
}

func (s *userStore) delete(req *http.Request) http.Responder {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.Param("id")
	if _, ok := s.users[id]; !ok {
		return http.StatusNotFound
	}
	delete(s.users, id)
	return http.StatusNoContent
}

func jsonResponse(status http.Status, v any) http.Response {
	body, err := json.Marshal(v)
	if err != nil {
		return http.Empty(http.StatusInternalServerError)
	}
	return http.JSON(body).WithStatus(status)
}

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tel, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: serviceName, OTLP: true})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", "error", err)
			}
		}()
		logger = tel.Logger
	}

	server := http.NewServer(serviceName)
	server.Config = cfg
	server.Logger = logger
	server.OnError = func(ctx context.Context, err error) {
		logger.DebugContext(ctx, "exchange failed", "error", err)
	}

	store := &userStore{users: map[string]user{}}
	router := server.Router
	router.Use(http.RequestIDMiddleware(), http.AccessLogMiddleware(logger))
	router.Group("/users", func(users *http.Router) {
		users.Post("", store.create)
		users.Get("/{id}", store.get)
		users.Delete("/{id}", store.delete)
	})
	router.Get("/healthz", http.Liveness)
	router.Get("/readyz", server.Readiness)

	if err := server.Bind(cfg.Addr); err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Addr, err)
	}
	return server.Serve(ctx)
}

// configFromEnv reads the KEEL_* variables over the package defaults.
func configFromEnv() (http.Config, error) {
	cfg := http.Config{
		Addr:          http.DefaultAddr,
		MaxLineLength: http.DefaultMaxLineLength,
		MaxHeaders:    http.DefaultMaxHeaders,
	}

	if v := os.Getenv("KEEL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("KEEL_DRAIN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("KEEL_DRAIN_TIMEOUT: %w", err)
		}
		cfg.DrainTimeout = d
	}
	for name, dst := range map[string]*int{
		"KEEL_MAX_LINE_LENGTH": &cfg.MaxLineLength,
		"KEEL_MAX_HEADERS":     &cfg.MaxHeaders,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("%s: expected a positive integer, got %q", name, v)
		}
		*dst = n
	}
	return cfg, nil
}
