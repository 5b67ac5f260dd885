// Package api serves stored runs and their scores over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/greenreach/internal/export"
	"github.com/sells-group/greenreach/internal/model"
	"github.com/sells-group/greenreach/internal/store"
)

// maxLimit caps page sizes requested by clients.
const maxLimit = 10000

// Options configures the router.
type Options struct {
	AllowedOrigins []string
}

type server struct {
	store store.Store
	log   *zap.Logger
}

// NewRouter returns the HTTP handler for the results API.
func NewRouter(st store.Store, opts Options) http.Handler {
	s := &server{store: st, log: zap.L().With(zap.String("component", "api"))}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Get("/scores", s.getScores)
			r.Get("/scores.geojson", s.getScoresGeoJSON)
		})
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.RunFilter{Limit: limit, Offset: offset}
	if st := r.URL.Query().Get("status"); st != "" {
		switch status := model.RunStatus(st); status {
		case model.RunStatusRunning, model.RunStatusComplete, model.RunStatusFailed:
			filter.Status = status
		default:
			writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(st))
			return
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.internal(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) getScores(w http.ResponseWriter, r *http.Request) {
	scores, ok := s.scores(w, r)
	if !ok {
		return
	}
	if scores == nil {
		scores = []model.ZoneScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *server) getScoresGeoJSON(w http.ResponseWriter, r *http.Request) {
	scores, ok := s.scores(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := export.WriteGeoJSON(w, scores); err != nil {
		s.log.Warn("api: write geojson", zap.Error(err))
	}
}

// scores reads the filtered scores of the run in the URL, writing the error
// response itself when it returns false.
func (s *server) scores(w http.ResponseWriter, r *http.Request) ([]model.ZoneScore, bool) {
	if _, ok := s.lookupRun(w, r); !ok {
		return nil, false
	}

	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	filter := store.ScoreFilter{Limit: limit, Offset: offset}
	if k := r.URL.Query().Get("kind"); k != "" {
		switch kind := model.ScoreKind(k); kind {
		case model.ScoreFinite, model.ScoreClosedForm, model.ScoreUnreachable:
			filter.Kind = kind
		default:
			writeError(w, http.StatusBadRequest, "invalid kind "+strconv.Quote(k))
			return nil, false
		}
	}

	runID := chi.URLParam(r, "runID")
	scores, err := s.store.GetScores(r.Context(), runID, filter)
	if err != nil {
		s.internal(w, "get scores", err)
		return nil, false
	}
	return scores, true
}

func (s *server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.internal(w, "get run", err)
		return nil, false
	}
	return run, true
}

func (s *server) internal(w http.ResponseWriter, op string, err error) {
	s.log.Error("api: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// paging reads limit and offset query parameters. Zero means unset.
func paging(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 || limit > maxLimit {
			return 0, 0, errors.New("limit must be an integer between 0 and " + strconv.Itoa(maxLimit))
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
