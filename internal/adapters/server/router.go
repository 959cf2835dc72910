// Package server exposes the GraphQL executor over HTTP.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	jsoniter "github.com/json-iterator/go"

	"github.com/MyCarrier-DevOps/repograph/internal/adapters/gql"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes bounds POST /graphql request bodies.
const maxBodyBytes = 1 << 20

// Logger defines the logging interface used by the server.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Executor runs a GraphQL request.
type Executor interface {
	Execute(ctx context.Context, req gql.Request) *graphql.Result
}

// Metrics receives per-request observations and serves the scrape endpoint.
type Metrics interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
	Handler() http.Handler
}

// NewRouter builds the HTTP routes: /graphql, /healthz and /metrics.
// metrics may be nil, in which case /metrics is not mounted.
func NewRouter(exec Executor, log Logger, metrics Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	if metrics != nil {
		r.Use(instrument(metrics))
	}
	r.Use(middleware.Recoverer)

	h := &graphqlHandler{exec: exec, logger: log}
	r.Get("/graphql", h.get)
	r.Post("/graphql", h.post)
	r.Get("/healthz", healthz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

type graphqlHandler struct {
	exec   Executor
	logger Logger
}

// get reads the request from the query string; variables are a JSON object.
func (h *graphqlHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := gql.Request{
		Query:         q.Get("query"),
		OperationName: q.Get("operationName"),
	}
	if raw := q.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			h.badRequest(w, r, "variables must be a JSON object: "+err.Error())
			return
		}
	}
	h.execute(w, r, req)
}

func (h *graphqlHandler) post(w http.ResponseWriter, r *http.Request) {
	var req gql.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.badRequest(w, r, "request body must be a JSON object: "+err.Error())
		return
	}
	h.execute(w, r, req)
}

func (h *graphqlHandler) execute(w http.ResponseWriter, r *http.Request, req gql.Request) {
	if req.Query == "" {
		h.badRequest(w, r, "missing query")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, h.exec.Execute(r.Context(), req), h.logger)
}

func (h *graphqlHandler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(r.Context(), w, http.StatusBadRequest, &graphql.Result{
		Errors: []gqlerrors.FormattedError{{Message: msg}},
	}, h.logger)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}, log Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error(ctx, "failed to encode response", err, nil)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Warn(ctx, "failed to write response", map[string]interface{}{"error": err.Error()})
	}
}
