package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/prompt"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/screening"
	"github.com/lumenclass/selcoach/internal/snapshot"
)

func (h *Handler) screeningRoutes(r chi.Router) {
	r.Get("/", h.screeningStatus)
	r.Post("/start", h.screeningStart)
	r.Post("/submit", h.screeningSubmit)
	r.Post("/previous", h.screeningPrevious)
	r.Post("/reset", h.screeningReset)
	r.Get("/results", h.screeningResults)
	r.Post("/intervention", h.screeningIntervention)
	r.Put("/intervention", h.screeningSetIntervention)
	r.Post("/save", h.screeningSave)
	r.Post("/snapshot", h.screeningSnapshot)
	r.Post("/restore", h.screeningRestore)
}

func (h *Handler) screeningStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var out interface{}
	sess.Do(func() {
		scr := sess.Screening
		out = map[string]interface{}{
			"state":         scr.State(),
			"grade":         scr.Grade(),
			"num_students":  scr.TargetCount(),
			"current_index": scr.CurrentIndex(),
			"students":      scr.Students(),
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) screeningStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Grade       string `json:"grade"`
		NumStudents int    `json:"num_students"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var err error
	sess.Do(func() {
		err = sess.Screening.Start(req.Grade, req.NumStudents)
	})
	if err != nil {
		writeScreeningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(screening.StateInProgress)})
}

func (h *Handler) screeningSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		StudentID string `json:"student_id"`
		Ratings   []int  `json:"ratings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var (
		err   error
		state screening.State
		index int
	)
	sess.Do(func() {
		err = sess.Screening.SubmitAndAdvance(req.StudentID, req.Ratings)
		state = sess.Screening.State()
		index = sess.Screening.CurrentIndex()
	})
	if err != nil {
		writeScreeningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": state, "current_index": index})
}

func (h *Handler) screeningPrevious(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var (
		err   error
		index int
	)
	sess.Do(func() {
		err = sess.Screening.GoPrevious()
		index = sess.Screening.CurrentIndex()
	})
	if err != nil {
		writeScreeningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"current_index": index})
}

func (h *Handler) screeningReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	sess.Do(func() {
		sess.Screening.Reset()
	})
	writeJSON(w, http.StatusOK, map[string]string{"state": string(screening.StateNotStarted)})
}

func (h *Handler) screeningResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var (
		results *screening.Results
		err     error
	)
	sess.Do(func() {
		results, err = sess.Screening.ComputeResults()
	})
	if err != nil {
		writeScreeningError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// screeningIntervention generates a recommendation for one screened student
// and records it on the session.
func (h *Handler) screeningIntervention(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		StudentID string `json:"student_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var (
		text string
		err  error
	)
	sess.Do(func() {
		rec, found := sess.Screening.RecordFor(req.StudentID)
		if !found {
			err = &screening.ValidationError{Reason: "no screening record for student"}
			return
		}
		results, rerr := sess.Screening.ComputeResults()
		if rerr != nil {
			err = rerr
			return
		}
		tier := screening.TierFor(rec.Average())
		p := prompt.Intervention(sess.Screening.Grade(), req.StudentID, rec.Ratings, string(tier), results.FocusArea)

		chatReq := &provider.ChatRequest{
			Model:       sess.Defaults.Model,
			System:      prompt.System,
			Messages:    []provider.Message{{Role: "user", Content: p}},
			Temperature: sess.Defaults.Temperature,
			MaxTokens:   sess.Defaults.MaxTokens,
			UseCache:    sess.Defaults.UseCache,
		}
		text, err = h.gateway.Generate(r.Context(), sess.Meter, chatReq)
		if err == nil {
			sess.Screening.SetIntervention(req.StudentID, text)
		}
	})
	if err != nil {
		var ve *screening.ValidationError
		if errors.As(err, &ve) {
			writeScreeningError(w, err)
			return
		}
		h.writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

// screeningSetIntervention stores teacher-edited intervention text.
func (h *Handler) screeningSetIntervention(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		StudentID string `json:"student_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.StudentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "student_id is required"})
		return
	}
	sess.Do(func() {
		sess.Screening.SetIntervention(req.StudentID, req.Text)
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// screeningSave archives the current screening to PostgreSQL.
func (h *Handler) screeningSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "archive not configured"})
		return
	}
	var snap screening.Snapshot
	sess.Do(func() {
		snap = sess.Screening.Snapshot(timeNow())
	})
	id, err := h.store.SaveScreening(r.Context(), snap)
	if err != nil {
		h.logger.Error("screening archive failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"screening_id": id})
}

// screeningSnapshot saves resumable state to the snapshot store.
func (h *Handler) screeningSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if h.saver == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots not configured"})
		return
	}
	var snap screening.Snapshot
	sess.Do(func() {
		snap = sess.Screening.Snapshot(timeNow())
	})
	if err := h.saver.Save(r.Context(), sess.ID, snap); err != nil {
		h.logger.Error("snapshot save failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// screeningRestore loads a previously snapshotted screening into a session.
// The body may name another session's snapshot to adopt.
func (h *Handler) screeningRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if h.saver == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots not configured"})
		return
	}
	var req struct {
		FromSessionID string `json:"from_session_id"`
	}
	// An empty body restores the session's own snapshot.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sourceID := req.FromSessionID
	if sourceID == "" {
		sourceID = sess.ID
	}

	snap, err := h.saver.Load(r.Context(), sourceID)
	if errors.Is(err, snapshot.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot for session"})
		return
	}
	if err != nil {
		h.logger.Error("snapshot load failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot load failed"})
		return
	}

	var state screening.State
	sess.Do(func() {
		sess.Screening = screening.Restore(snap)
		state = sess.Screening.State()
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": state, "grade": snap.Grade})
}

func (h *Handler) listScreenings(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "archive not configured"})
		return
	}
	recs, err := h.store.ListScreenings(r.Context(), 50)
	if err != nil {
		h.logger.Error("screening list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) getScreening(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "archive not configured"})
		return
	}
	id := chi.URLParam(r, "screeningID")
	snap, err := h.store.LoadScreening(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "screening not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
