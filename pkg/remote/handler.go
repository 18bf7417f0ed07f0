package remote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bft-labs/envpool/pkg/env"
	"github.com/bft-labs/envpool/pkg/log"
)

// Handler serves a local pool's lifecycle operations over HTTP.
type Handler struct {
	pool    *env.Pool
	authKey string
	logger  log.Logger
	mux     *http.ServeMux
}

// NewHandler creates an http.Handler exposing the pool.
// When authKey is non-empty, requests must carry it as a bearer token.
func NewHandler(pool *env.Pool, authKey string, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	h := &Handler{
		pool:    pool,
		authKey: authKey,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET "+environmentsEndpoint, h.list)
	h.mux.HandleFunc("POST "+environmentsEndpoint+"/{id}/{op}", h.operate)
	return h
}

// ServeHTTP dispatches requests after checking authorization.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authKey != "" && r.Header.Get("Authorization") != "Bearer "+h.authKey {
		h.reply(w, http.StatusUnauthorized, operationReply{Error: "unauthorized"})
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.reply(w, http.StatusOK, h.pool.Statuses())
}

func (h *Handler) operate(w http.ResponseWriter, r *http.Request) {
	id := env.Identity(r.PathValue("id"))
	op := r.PathValue("op")

	var err error
	reply := operationReply{ID: id.String()}

	switch op {
	case "start":
		var outcome env.Outcome
		_, outcome, err = h.pool.Acquire(r.Context(), id)
		reply.Outcome = outcome.String()
		if err == nil && outcome == env.OutcomeFailed {
			err = h.pool.StartErr(id)
		}
	case "stop":
		err = h.pool.Stop(r.Context(), id)
	case "reload":
		err = h.pool.Reload(r.Context(), id)
	default:
		h.reply(w, http.StatusNotFound, operationReply{ID: id.String(), Error: "unknown operation " + op})
		return
	}

	if err != nil {
		reply.Error = err.Error()
		status := http.StatusInternalServerError
		if errors.Is(err, env.ErrUnknownIdentity) {
			status = http.StatusNotFound
		}
		h.logger.Error("remote operation failed",
			log.Stringer("environment", id),
			log.String("op", op),
			log.Err(err),
		)
		h.reply(w, status, reply)
		return
	}

	h.reply(w, http.StatusOK, reply)
}

func (h *Handler) reply(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response failed", log.Err(err))
	}
}
