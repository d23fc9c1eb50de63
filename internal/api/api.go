// Package api serves the workflow engine over HTTP.
//
// Every route except /healthz and /metrics requires an X-Actor header naming
// a configured user. Errors are returned as {"error": code, "message": text}
// with an HTTP status derived from the error kind.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/venus-kyc/caseflow/internal/dossier"
	"github.com/venus-kyc/caseflow/internal/risk"
	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

// ActorHeader carries the acting username.
const ActorHeader = "X-Actor"

type ctxKey struct{}

// Server holds the collaborators behind the routes.
type Server struct {
	engine    *workflow.Engine
	screening *screening.Service
	risk      *risk.Service
	dossier   *dossier.Builder
	metrics   http.Handler
	log       *slog.Logger
}

// Options configures optional parts of the server.
type Options struct {
	Screening *screening.Service
	Risk      *risk.Service
	Dossier   *dossier.Builder
	Metrics   http.Handler
	Logger    *slog.Logger
}

// New creates a server around engine. Nil options disable their routes.
func New(engine *workflow.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		screening: opts.Screening,
		risk:      opts.Risk,
		dossier:   opts.Dossier,
		metrics:   opts.Metrics,
		log:       logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireActor)

		r.Get("/cases", s.listCases)
		r.Post("/cases", s.createCase)
		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Get("/", s.getCase)
			r.Post("/transition", s.transition)
			r.Put("/assignee", s.assign)
			r.Get("/eligible-assignees", s.eligibleAssignees)
			r.Get("/history", s.history)
			r.Get("/comments", s.comments)
			r.Post("/notes", s.addNote)
			r.Get("/documents", s.documents)
			r.Post("/documents", s.attachDocument)
			r.Get("/validation", s.validate)
			r.Put("/answers/{questionID}", s.recordAnswer)
			if s.dossier != nil {
				r.Get("/dossier", s.getDossier)
			}
		})

		r.Get("/inbox", s.inbox)
		r.Get("/case-tasks", s.caseTasks)
		r.Get("/roles/{role}/users", s.usersForRole)
		r.Get("/questions", s.questions)

		r.Route("/adhoc", func(r chi.Router) {
			r.Get("/", s.myAdHoc)
			r.Post("/", s.createAdHoc)
			r.Get("/{taskID}", s.getAdHoc)
			r.Post("/{taskID}/respond", s.respondAdHoc)
			r.Post("/{taskID}/complete", s.completeAdHoc)
			r.Post("/{taskID}/reassign", s.reassignAdHoc)
		})

		if s.screening != nil {
			r.Post("/subjects/{subjectID}/screenings", s.startScreening)
			r.Get("/subjects/{subjectID}/screenings", s.screeningHistory)
			r.Get("/screenings/{requestID}", s.getScreening)
		}
		if s.risk != nil {
			r.Get("/subjects/{subjectID}/risk", s.latestRisk)
			r.Post("/subjects/{subjectID}/risk", s.recordRisk)
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"actor", r.Header.Get(ActorHeader),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.engine.ResolveActor(strings.TrimSpace(r.Header.Get(ActorHeader)))
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, actor)))
	})
}

func actorFrom(r *http.Request) workflow.Actor {
	a, _ := r.Context().Value(ctxKey{}).(workflow.Actor)
	return a
}

// Cases

type createCaseReq struct {
	SubjectID int64  `json:"subject_id"`
	Reason    string `json:"reason"`
}

func (s *Server) createCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseReq
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.CreateCase(r.Context(), req.SubjectID, req.Reason, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.engine.ListCases(r.Context(), r.URL.Query().Get("stage"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cases))
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	c, err := s.engine.Case(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getDossier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	doc, err := s.dossier.Build(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

type transitionReq struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req transitionReq
	if !decode(w, r, &req) {
		return
	}
	action, err := workflow.ParseAction(req.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := s.engine.Transition(r.Context(), id, action, req.Comment, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type assignReq struct {
	Assignee string `json:"assignee"`
}

// assign sets the case assignee. An empty assignee returns it to the pool.
func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req assignReq
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.Assign(r.Context(), id, strings.TrimSpace(req.Assignee), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) eligibleAssignees(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	users, err := s.engine.EligibleAssignees(r.Context(), id, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	events, err := s.engine.History(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *Server) comments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	comments, err := s.engine.Comments(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

type noteReq struct {
	Text string `json:"text"`
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req noteReq
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.AddNote(r.Context(), id, req.Text, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) documents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	docs, err := s.engine.Documents(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

type documentReq struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	MimeType string `json:"mime_type"`
	Comment  string `json:"comment"`
}

func (s *Server) attachDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	var req documentReq
	if !decode(w, r, &req) {
		return
	}
	doc, err := s.engine.AttachDocument(r.Context(), id, workflow.DocumentInput{
		Name:     req.Name,
		Category: req.Category,
		MimeType: req.MimeType,
		Comment:  req.Comment,
	}, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	res, err := s.engine.Validate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res.Missing == nil {
		res.Missing = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

type answerReq struct {
	Values []string `json:"values"`
}

func (s *Server) recordAnswer(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathID(w, r, "caseID")
	if !ok {
		return
	}
	questionID, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	var req answerReq
	if !decode(w, r, &req) {
		return
	}
	a, err := s.engine.RecordAnswer(r.Context(), caseID, questionID, req.Values, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) questions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.engine.Questions(r.Context(), r.URL.Query().Get("template"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(qs))
}

// Queues

func (s *Server) inbox(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.Inbox(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) caseTasks(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListCaseTasks(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) usersForRole(w http.ResponseWriter, r *http.Request) {
	role, err := workflow.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
		return
	}
	users, err := s.engine.UsersForRole(r.Context(), role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

// Ad-hoc tasks

type createAdHocReq struct {
	Assignee string `json:"assignee"`
	Text     string `json:"text"`
	ClientID *int64 `json:"client_id"`
}

func (s *Server) createAdHoc(w http.ResponseWriter, r *http.Request) {
	var req createAdHocReq
	if !decode(w, r, &req) {
		return
	}
	task, err := s.engine.CreateAdHoc(r.Context(), actorFrom(r), req.Assignee, req.Text, req.ClientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) myAdHoc(w http.ResponseWriter, r *http.Request) {
	mine, err := s.engine.ListMyAdHoc(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]store.AdHocTask{
		"owned":    nonNil(mine.Owned),
		"assigned": nonNil(mine.Assigned),
	})
}

func (s *Server) getAdHoc(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.AdHocTask(r.Context(), chi.URLParam(r, "taskID"), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type respondReq struct {
	Text string `json:"text"`
}

func (s *Server) respondAdHoc(w http.ResponseWriter, r *http.Request) {
	var req respondReq
	if !decode(w, r, &req) {
		return
	}
	task, err := s.engine.RespondAdHoc(r.Context(), chi.URLParam(r, "taskID"), req.Text, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) completeAdHoc(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.CompleteAdHoc(r.Context(), chi.URLParam(r, "taskID"), actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) reassignAdHoc(w http.ResponseWriter, r *http.Request) {
	var req assignReq
	if !decode(w, r, &req) {
		return
	}
	task, err := s.engine.ReassignAdHoc(r.Context(), chi.URLParam(r, "taskID"), req.Assignee, actorFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Screening and risk

func (s *Server) startScreening(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	req, err := s.screening.Start(r.Context(), subjectID, actorFrom(r).ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) screeningHistory(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	reqs, err := s.screening.History(r.Context(), subjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

// getScreening returns a request, pulling fresh results from the provider
// unless ?refresh=false.
func (s *Server) getScreening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	var (
		req *store.ScreeningRequest
		err error
	)
	if r.URL.Query().Get("refresh") == "false" {
		req, err = s.screening.Get(r.Context(), id)
	} else {
		req, err = s.screening.Refresh(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) latestRisk(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	a, err := s.risk.Latest(r.Context(), subjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no risk assessment"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) recordRisk(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathID(w, r, "subjectID")
	if !ok {
		return
	}
	var a store.RiskAssessment
	if !decode(w, r, &a) {
		return
	}
	a.ClientID = subjectID
	if err := s.risk.Record(r.Context(), &a, actorFrom(r).ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Helpers

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, screening.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, risk.ErrInvalid), errors.Is(err, screening.ErrInvalidSubject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, screening.ErrProvider):
		return http.StatusBadGateway
	}
	switch workflow.KindOf(err) {
	case workflow.KindAuthorization:
		return http.StatusForbidden
	case workflow.KindValidation:
		return http.StatusUnprocessableEntity
	case workflow.KindState:
		return http.StatusConflict
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindDependency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := errorBody{Error: "error", Message: err.Error(), Missing: workflow.MissingFields(err)}
	var we *workflow.Error
	switch {
	case errors.As(err, &we):
		body.Error = we.Code
	case status == http.StatusNotFound:
		body.Error = "not_found"
	case status == http.StatusUnprocessableEntity:
		body.Error = "invalid"
	case status == http.StatusBadGateway:
		body.Error = "dependency"
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid " + name})
		return 0, false
	}
	return id, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
