package server

import (
	"errors"
	"net/http"

	apierrors "github.com/maruel/flatdb/internal/errors"
	"github.com/maruel/flatdb/internal/server/handlers"
	"github.com/maruel/flatdb/internal/server/ratelimit"
	"github.com/maruel/flatdb/internal/storage"
)

// Config holds what the router needs to serve the collections.
type Config struct {
	Registry *storage.Registry
	Server   *storage.ServerConfig
	Limits   *ratelimit.Config
	Version  string
}

// NewRouter creates and configures the HTTP router.
//
// Read commands are open. Write commands require a bearer token obtained from
// /api/auth/token.
func NewRouter(cfg *Config) http.Handler {
	mux := http.NewServeMux()
	maxBody := cfg.Server.MaxRequestBodyBytes
	limits := cfg.Limits
	if limits == nil {
		limits = &ratelimit.Config{}
	}

	ch := handlers.NewCollectionHandler(cfg.Registry)
	ah := handlers.NewAuthHandler(cfg.Server.AdminPasswordHash, cfg.Server.Secret())
	hh := handlers.NewHealthHandler(cfg.Version, cfg.Registry)
	sh := handlers.NewSchemaHandler()

	authTier := ratelimit.Middleware(limits.Auth, clientIP, writeRateLimitError)
	readTier := ratelimit.Middleware(limits.Read, clientIP, writeRateLimitError)
	writeTier := ratelimit.Middleware(limits.Write, clientIP, writeRateLimitError)
	requireAuth := RequireAuth(cfg.Server.Secret())
	write := func(h http.Handler) http.Handler {
		return writeTier(requireAuth(h))
	}

	// Server
	mux.Handle("GET /api/health", Wrap(hh.Health, maxBody))
	mux.Handle("GET /api/schema", Wrap(sh.Schema, maxBody))
	mux.Handle("POST /api/auth/token", authTier(Wrap(ah.Token, maxBody)))
	mux.Handle("GET /api/collections", readTier(Wrap(ch.ListCollections, maxBody)))

	// Reads
	const c = "/api/collections/{collection}/"
	mux.Handle("POST "+c+"get", readTier(Wrap(ch.Get, maxBody)))
	mux.Handle("POST "+c+"getBulk", readTier(Wrap(ch.GetBulk, maxBody)))
	mux.Handle("POST "+c+"searchKeys", readTier(Wrap(ch.SearchKeys, maxBody)))
	mux.Handle("POST "+c+"search", readTier(Wrap(ch.Search, maxBody)))
	mux.Handle("POST "+c+"select", readTier(Wrap(ch.Select, maxBody)))
	mux.Handle("POST "+c+"values", readTier(Wrap(ch.Values, maxBody)))
	mux.Handle("POST "+c+"random", readTier(Wrap(ch.Random, maxBody)))
	mux.Handle("GET "+c+"read_raw", readTier(Wrap(ch.ReadRaw, maxBody)))
	mux.Handle("GET "+c+"sha1", readTier(Wrap(ch.SHA1, maxBody)))

	// Writes
	mux.Handle("POST "+c+"add", write(Wrap(ch.Add, maxBody)))
	mux.Handle("POST "+c+"addBulk", write(Wrap(ch.AddBulk, maxBody)))
	mux.Handle("POST "+c+"set", write(Wrap(ch.Set, maxBody)))
	mux.Handle("POST "+c+"setBulk", write(Wrap(ch.SetBulk, maxBody)))
	mux.Handle("POST "+c+"remove", write(Wrap(ch.Remove, maxBody)))
	mux.Handle("POST "+c+"removeBulk", write(Wrap(ch.RemoveBulk, maxBody)))
	mux.Handle("POST "+c+"editField", write(Wrap(ch.EditField, maxBody)))
	mux.Handle("POST "+c+"editFieldBulk", write(Wrap(ch.EditFieldBulk, maxBody)))
	mux.Handle("POST "+c+"write_raw", write(Wrap(ch.WriteRaw, maxBody)))

	mux.Handle(c+"{command}", unknownCommand(cfg.Registry))
	mux.Handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, apierrors.NotFound("endpoint"))
	}))

	return logRequests(mux)
}

func unknownCommand(registry *storage.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("collection")
		if _, err := registry.Get(name); errors.Is(err, storage.ErrUnknownCollection) {
			writeAPIError(w, apierrors.CollectionNotFound(name))
			return
		}
		writeAPIError(w, apierrors.UnknownCommand(r.PathValue("command")))
	})
}
