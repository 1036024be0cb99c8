package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
	"github.com/joescharf/issuetracker/internal/tracker"
)

// Options configures a Server.
type Options struct {
	// StrictStatus answers validation failures with 400/404 instead of 200.
	StrictStatus bool
	// CORS adds permissive cross-origin headers.
	CORS bool
	// Static, when set, serves everything outside /api and /healthz.
	Static http.Handler
	Logger *slog.Logger
}

// Server provides the REST API handlers.
type Server struct {
	issues  *tracker.Service
	respond *Responder
	log     *slog.Logger
	opts    Options
}

// NewServer creates a new API server over svc.
func NewServer(svc *tracker.Service, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		issues:  svc,
		respond: &Responder{Strict: opts.StrictStatus, Log: log},
		log:     log,
		opts:    opts,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/issues/{project}", s.listIssues)
	mux.HandleFunc("POST /api/issues/{project}", s.createIssue)
	mux.HandleFunc("PUT /api/issues/{project}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{project}", s.deleteIssue)

	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("GET /healthz", s.health)

	if s.opts.Static != nil {
		mux.Handle("GET /", s.opts.Static)
	}

	var h http.Handler = mux
	if s.opts.CORS {
		h = corsMiddleware(h)
	}
	return requestIDMiddleware(accessLogMiddleware(s.log, h))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	filter := store.NewIssueFilter(queryFields(r))

	issues, err := s.issues.List(r.Context(), project, filter)
	if err != nil {
		s.respond.Failure(w, r, err)
		return
	}
	s.respond.OK(w, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}

	issue, err := s.issues.Create(r.Context(), r.PathValue("project"), tracker.CreateInputFromFields(fields))
	if err != nil {
		s.respond.Failure(w, r, err)
		return
	}
	s.respond.OK(w, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}

	id := fields[models.FieldID]
	patch := models.PatchFromFields(fields)
	if _, err := s.issues.Update(r.Context(), r.PathValue("project"), id, patch); err != nil {
		s.respond.Failure(w, r, err)
		return
	}
	s.respond.OK(w, Result{Result: ResultUpdated, ID: id})
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}

	id := fields[models.FieldID]
	if err := s.issues.Delete(r.Context(), r.PathValue("project"), id); err != nil {
		s.respond.Failure(w, r, err)
		return
	}
	s.respond.OK(w, Result{Result: ResultDeleted, ID: id})
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.issues.Projects(r.Context())
	if err != nil {
		s.respond.Failure(w, r, err)
		return
	}
	s.respond.OK(w, projects)
}

// readFields decodes the body, answering 400 itself when it is malformed.
func (s *Server) readFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	fields, err := decodeFields(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		s.log.DebugContext(r.Context(), "bad request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, errInvalidBody.Error())
		return nil, false
	}
	return fields, true
}
