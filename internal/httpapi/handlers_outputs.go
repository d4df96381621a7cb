package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// handleOutputs serves result artifacts from the outputs directory.
// Markdown artifacts render to HTML with ?format=html for the local UI.
//
// handleOutputs godoc
// @Summary Serve a persisted output artifact
// @Param path path string true "Path relative to the outputs directory"
// @Param format query string false "html renders .md/.mmd files"
// @Success 200
// @Failure 404 {object} types.ErrorResponse
// @Router /outputs/{path} [get]
func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	// Normalize and refuse escapes from the outputs tree.
	rel = filepath.Clean("/" + rel)[1:]
	if rel == "" || rel == "." {
		writeJSONError(w, http.StatusNotFound, "file not found")
		return
	}
	full := filepath.Join(s.outputRoot, rel)

	fi, err := os.Stat(full)
	if err != nil || fi.IsDir() {
		writeJSONError(w, http.StatusNotFound, "file not found")
		return
	}

	ext := strings.ToLower(filepath.Ext(full))
	if r.URL.Query().Get("format") == "html" && (ext == ".md" || ext == ".mmd") {
		data, err := os.ReadFile(full)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "could not read file")
			return
		}
		var buf bytes.Buffer
		if err := markdown.Convert(data, &buf); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "could not render markdown")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	http.ServeFile(w, r, full)
}
