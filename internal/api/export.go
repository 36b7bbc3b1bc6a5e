package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/docio"
)

// extractDocument pulls plain text from an uploaded lesson document so the
// client can feed it to the analyzer. Unsupported formats yield empty text
// rather than an error.
func (h *Handler) extractDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessionFromRequest(w, r); !ok {
		return
	}
	var req struct {
		Filename string `json:"filename"`
		Data     string `json:"data"` // base64
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "data must be base64"})
		return
	}
	ext := ""
	if i := strings.LastIndex(req.Filename, "."); i >= 0 {
		ext = strings.ToLower(req.Filename[i:])
	}
	text, err := docio.ExtractText(data, ext)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read document"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// exportBundle renders the generated plan bundle in the requested format
// and returns it as a download.
func (h *Handler) exportBundle(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessionFromRequest(w, r); !ok {
		return
	}
	var req struct {
		Plan             string `json:"plan"`
		ParentEmail      string `json:"parent_email"`
		StudentMaterials string `json:"student_materials"`
		Differentiation  string `json:"differentiation"`
		Format           string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Plan == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "plan is required"})
		return
	}

	bundle := docio.Bundle{
		Plan:             req.Plan,
		ParentEmail:      req.ParentEmail,
		StudentMaterials: req.StudentMaterials,
		Differentiation:  req.Differentiation,
	}

	switch req.Format {
	case "", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="sel_plan.txt"`)
		w.Write(bundle.ToText())
	case "docx":
		data, err := bundle.ToDocx()
		if err != nil {
			h.logger.Error("docx export failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", `attachment; filename="sel_plan.docx"`)
		w.Write(data)
	case "pdf":
		data, err := bundle.ToPDF()
		if err != nil {
			h.logger.Error("pdf export failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="sel_plan.pdf"`)
		w.Write(data)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported format: " + req.Format})
	}
}
