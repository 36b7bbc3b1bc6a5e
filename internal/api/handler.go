package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/library"
	"github.com/lumenclass/selcoach/internal/memory"
	"github.com/lumenclass/selcoach/internal/prompt"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/screening"
	"github.com/lumenclass/selcoach/internal/sel"
	"github.com/lumenclass/selcoach/internal/session"
	"github.com/lumenclass/selcoach/internal/snapshot"
	"github.com/lumenclass/selcoach/internal/store"
	"github.com/lumenclass/selcoach/internal/surface"
)

// evidenceTopK bounds library retrieval per request.
const evidenceTopK = 3

// Handler holds dependencies for HTTP handlers. Store, saver, library, and
// restSurface are optional; their routes answer 503 when absent.
type Handler struct {
	sessions    *session.Manager
	gateway     *coach.Gateway
	allow       *session.Allowlist
	store       *store.Store
	saver       snapshot.Saver
	library     *library.Library
	restSurface *surface.RESTAdapter
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	sessions *session.Manager,
	gateway *coach.Gateway,
	allow *session.Allowlist,
	st *store.Store,
	saver snapshot.Saver,
	lib *library.Library,
	restSurface *surface.RESTAdapter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:    sessions,
		gateway:     gateway,
		allow:       allow,
		store:       st,
		saver:       saver,
		library:     lib,
		restSurface: restSurface,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Identity"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/catalog", h.catalog)

		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/analyze", h.analyzeLesson)
			r.Post("/lesson", h.createLesson)
			r.Post("/strategy", h.quickStrategy)
			r.Post("/strategy/stream", h.quickStrategyStream)
			r.Post("/parent-email", h.parentEmail)
			r.Post("/student-materials", h.studentMaterials)
			r.Post("/differentiation", h.differentiation)

			r.Post("/scenario", h.studentScenario)
			r.Post("/scenario/feedback", h.scenarioFeedback)

			r.Post("/training", h.trainingModule)
			r.Post("/training/scenario", h.trainingScenario)
			r.Post("/training/feedback", h.trainingFeedback)

			r.Post("/check-in", h.checkIn)

			r.Post("/wellness/boundary-email", h.boundaryEmail)
			r.Post("/wellness/reframe", h.reframeThought)
			r.Post("/wellness/destress", h.deStress)

			r.Route("/screening", h.screeningRoutes)

			r.Get("/usage", h.usageSummary)
			r.Post("/usage/reset", h.usageReset)

			r.Post("/extract", h.extractDocument)
			r.Post("/export", h.exportBundle)
		})

		r.Get("/screenings", h.listScreenings)
		r.Get("/screenings/{screeningID}", h.getScreening)

		if h.restSurface != nil {
			r.Mount("/surface/rest", h.restSurface.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// catalog exposes the static SEL data the client builds its forms from.
func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"competencies":       sel.Competencies,
		"skills":             sel.Skills,
		"grade_levels":       sel.GradeLevels,
		"subjects":           sel.Subjects,
		"check_in_tones":     sel.CheckInTones,
		"boundary_scenarios": prompt.BoundaryScenarios,
	})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID})
}

// sessionFromRequest resolves the session or answers 404 itself.
func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// generate runs one buffered generation under the session lock and writes
// the response or the mapped error.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request, sess *session.Session, userPrompt string, withSystem bool) {
	var (
		text string
		err  error
	)
	sess.Do(func() {
		req := &provider.ChatRequest{
			Model:       sess.Defaults.Model,
			Messages:    []provider.Message{{Role: "user", Content: userPrompt}},
			Temperature: sess.Defaults.Temperature,
			MaxTokens:   sess.Defaults.MaxTokens,
			UseCache:    sess.Defaults.UseCache,
		}
		if withSystem {
			req.System = prompt.System
		}
		text, err = h.gateway.Generate(r.Context(), sess.Meter, req)
	})
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

// writeGenerationError maps the gateway error taxonomy onto HTTP statuses:
// limiter denials are 429, provider rejections and transport failures 502.
func (h *Handler) writeGenerationError(w http.ResponseWriter, err error) {
	var rle *coach.RateLimitError
	if errors.As(err, &rle) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": rle.Reason})
		return
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": apiErr.Message,
			"type":  apiErr.Type,
		})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}

// withEvidence enriches a prompt from the library when one is configured.
func (h *Handler) withEvidence(r *http.Request, userPrompt, query string) string {
	if h.library == nil {
		return userPrompt
	}
	entries, err := h.library.Query(r.Context(), query, evidenceTopK)
	if err != nil {
		h.logger.Warn("evidence lookup failed", zap.Error(err))
		return userPrompt
	}
	return prompt.WithEvidence(userPrompt, library.FormatEvidence(entries))
}

func (h *Handler) analyzeLesson(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		LessonPlan string `json:"lesson_plan"`
		Standard   string `json:"standard"`
		Competency string `json:"competency"`
		Skill      string `json:"skill"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.LessonPlan == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lesson_plan is required"})
		return
	}
	p := prompt.Analysis(req.LessonPlan, req.Standard, req.Competency, req.Skill)
	p = h.withEvidence(r, p, req.LessonPlan)
	h.generate(w, r, sess, p, true)
}

func (h *Handler) createLesson(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		GradeLevel string `json:"grade_level"`
		Subject    string `json:"subject"`
		Topic      string `json:"topic"`
		Competency string `json:"competency"`
		Skill      string `json:"skill"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
		return
	}
	h.generate(w, r, sess, prompt.Creation(req.GradeLevel, req.Subject, req.Topic, req.Competency, req.Skill), true)
}

func (h *Handler) quickStrategy(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Situation string `json:"situation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Situation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "situation is required"})
		return
	}
	p := h.withEvidence(r, prompt.Strategy(req.Situation), req.Situation)
	h.generate(w, r, sess, p, true)
}

// quickStrategyStream is the SSE variant of quickStrategy. Fragments arrive
// as data events; a final done event closes the stream.
func (h *Handler) quickStrategyStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Situation string `json:"situation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Situation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "situation is required"})
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	sink := func(fragment string) {
		data, _ := json.Marshal(map[string]string{"content": fragment})
		w.Write([]byte("data: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
		if canFlush {
			flusher.Flush()
		}
	}

	var err error
	sess.Do(func() {
		chatReq := &provider.ChatRequest{
			Model:       sess.Defaults.Model,
			System:      prompt.System,
			Messages:    []provider.Message{{Role: "user", Content: h.withEvidence(r, prompt.Strategy(req.Situation), req.Situation)}},
			Temperature: sess.Defaults.Temperature,
			MaxTokens:   sess.Defaults.MaxTokens,
			UseCache:    sess.Defaults.UseCache,
		}
		_, err = h.gateway.GenerateStream(r.Context(), sess.Meter, chatReq, sink)
	})
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		w.Write([]byte("event: error\ndata: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
	} else {
		w.Write([]byte("event: done\ndata: {}\n\n"))
	}
	if canFlush {
		flusher.Flush()
	}
}

// derivedRequest covers the three builders that transform an existing plan.
type derivedRequest struct {
	LessonPlan string `json:"lesson_plan"`
}

func (h *Handler) decodeDerived(w http.ResponseWriter, r *http.Request) (derivedRequest, bool) {
	var req derivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return req, false
	}
	if req.LessonPlan == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lesson_plan is required"})
		return req, false
	}
	return req, true
}

func (h *Handler) parentEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeDerived(w, r)
	if !ok {
		return
	}
	h.generate(w, r, sess, prompt.ParentEmail(req.LessonPlan), false)
}

func (h *Handler) studentMaterials(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeDerived(w, r)
	if !ok {
		return
	}
	h.generate(w, r, sess, prompt.StudentMaterials(req.LessonPlan), false)
}

func (h *Handler) differentiation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeDerived(w, r)
	if !ok {
		return
	}
	h.generate(w, r, sess, prompt.Differentiation(req.LessonPlan), false)
}

func (h *Handler) studentScenario(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Competency string `json:"competency"`
		Skill      string `json:"skill"`
		GradeLevel string `json:"grade_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// A fresh scenario starts a fresh practice conversation.
	sess.Do(func() {
		sess.Meter.Memory.Clear()
	})
	h.generate(w, r, sess, prompt.Scenario(req.Competency, req.Skill, req.GradeLevel), false)
}

// scenarioFeedback runs one Socratic turn: the student's reply joins the
// conversation memory and the coach answers with a single question.
func (h *Handler) scenarioFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Scenario string `json:"scenario"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	var (
		text string
		err  error
	)
	sess.Do(func() {
		sess.Meter.Memory.Append(memory.RoleUser, req.Message, nil)
		chatReq := &provider.ChatRequest{
			Model:       sess.Defaults.Model,
			Messages:    []provider.Message{{Role: "user", Content: prompt.SocraticFeedback(req.Scenario, sess.Meter.Memory.FormatForPrompt())}},
			Temperature: sess.Defaults.Temperature,
			MaxTokens:   sess.Defaults.MaxTokens,
			UseCache:    sess.Defaults.UseCache,
		}
		text, err = h.gateway.Generate(r.Context(), sess.Meter, chatReq)
	})
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

func (h *Handler) trainingModule(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Competency string `json:"competency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !sel.ValidCompetency(req.Competency) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown competency"})
		return
	}
	h.generate(w, r, sess, prompt.Training(req.Competency), true)
}

func (h *Handler) trainingScenario(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Competency string `json:"competency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.generate(w, r, sess, prompt.TrainingScenario(req.Competency), false)
}

func (h *Handler) trainingFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Competency string `json:"competency"`
		Scenario   string `json:"scenario"`
		Response   string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.generate(w, r, sess, prompt.TrainingFeedback(req.Competency, req.Scenario, req.Response), false)
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		GradeLevel string `json:"grade_level"`
		Tone       string `json:"tone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.generate(w, r, sess, prompt.CheckIn(req.GradeLevel, req.Tone), false)
}

func (h *Handler) boundaryEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Scenario string `json:"scenario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Scenario == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scenario is required"})
		return
	}
	h.generate(w, r, sess, prompt.BoundaryEmail(req.Scenario), false)
}

func (h *Handler) reframeThought(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Thought string `json:"thought"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Thought == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "thought is required"})
		return
	}
	h.generate(w, r, sess, prompt.Reframe(req.Thought), false)
}

func (h *Handler) deStress(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.generate(w, r, sess, prompt.DeStress(), false)
}

func (h *Handler) usageSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var out interface{}
	sess.Do(func() {
		out = map[string]interface{}{
			"summary":  sess.Meter.Usage.Summary(timeNow()),
			"attempts": sess.Meter.Limiter.Attempts(),
		}
	})
	writeJSON(w, http.StatusOK, out)
}

// usageReset zeroes the session ledger. Admin capability comes from the
// X-Identity header checked against the configured allow-list. The header
// is trusted as-is: it must be set by the authenticating reverse proxy in
// front of this service (see session.Allowlist) and stripped from client
// traffic there.
func (h *Handler) usageReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	identity := r.Header.Get("X-Identity")
	if h.allow == nil || !h.allow.Authorize(identity) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin capability required"})
		return
	}
	sess.Do(func() {
		sess.Meter.Usage.Reset(timeNow())
	})
	h.logger.Info("usage ledger reset", zap.String("identity", identity), zap.String("session_id", sess.ID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeScreeningError maps screening validation failures to 400 and
// anything else to 409 (operation not valid in the current state).
func writeScreeningError(w http.ResponseWriter, err error) {
	var ve *screening.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Reason})
		return
	}
	writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
}
