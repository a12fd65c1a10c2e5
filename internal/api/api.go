package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/joescharf/kan/internal/board"
	"github.com/joescharf/kan/internal/forge"
	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/store"
	kansync "github.com/joescharf/kan/internal/sync"
)

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	engine *kansync.Engine
	board  *board.Board
}

// NewServer creates a new API server.
func NewServer(s store.Store, e *kansync.Engine) *Server {
	return &Server{
		store:  s,
		engine: e,
		board:  board.New(s),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/projects/{id}/board", s.getBoard)
	mux.HandleFunc("GET /api/v1/projects/{id}/tasks", s.listTasks)
	mux.HandleFunc("POST /api/v1/projects/{id}/tasks", s.createTask)
	mux.HandleFunc("PUT /api/v1/projects/{id}/tasks/{number}", s.editTask)
	mux.HandleFunc("POST /api/v1/projects/{id}/tasks/{number}/move", s.moveTask)

	mux.HandleFunc("POST /api/v1/projects/{id}/sync", s.syncProject)
	mux.HandleFunc("GET /api/v1/projects/{id}/sync", s.syncStatus)
	mux.HandleFunc("DELETE /api/v1/projects/{id}/sync/error", s.dismissError)

	mux.HandleFunc("POST /api/v1/sync", s.syncAll)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps a sync/forge failure to an HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	switch forge.KindOf(err) {
	case forge.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, err.Error())
	case forge.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	case forge.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case forge.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, err.Error())
	case forge.KindNetwork:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if strings.Contains(err.Error(), "rate limited") {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Projects ---

type projectResponse struct {
	*models.Project
	Sync kansync.ProjectState `json:"sync"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		result = append(result, projectResponse{Project: p, Sync: s.engine.State(p.ID)})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: project, Sync: s.engine.State(project.ID)})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo        string `json:"repo"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Private     bool   `json:"private"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var (
		project *models.Project
		err     error
	)
	switch {
	case req.Repo != "":
		// Link an existing repository.
		project, err = s.engine.LinkProject(r.Context(), req.Repo)
	case req.Name != "":
		// Create a new repository, then link it.
		project, err = s.engine.CreateProject(r.Context(), req.Name, req.Description, req.Private)
	default:
		writeError(w, http.StatusBadRequest, "repo or name is required")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Board & tasks ---

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.board.Snapshot(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tasks, err := s.store.ListTasks(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		want := models.ParseStatus(status)
		filtered := make([]*models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Title  string `json:"title"`
		Body   string `json:"body"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	status := models.StatusTodo
	if req.Status != "" {
		status = models.ParseStatus(req.Status)
	}

	task, err := s.engine.CreateTask(r.Context(), id, req.Title, req.Body, status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) editTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	task, err := s.engine.EditTask(r.Context(), id, number, req.Title, req.Body)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) moveTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	task, err := s.engine.MoveTask(r.Context(), id, number, models.ParseStatus(req.Status))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- Sync ---

func (s *Server) syncProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var err error
	if r.URL.Query().Get("full") == "true" {
		err = s.engine.FullPull(r.Context(), id)
	} else {
		err = s.engine.Pull(r.Context(), id)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State(id))
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State(id))
}

func (s *Server) dismissError(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.engine.ClearError(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.PullAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}
