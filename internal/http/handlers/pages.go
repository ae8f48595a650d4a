package handlers

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// UploadPage serves the room upload form.
func (a *App) UploadPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, "upload.html", nil)
}

type resultPageData struct {
	OriginalImageURL string
	StagedImageURL   string
}

// ResultPage renders the before/after view. Both image URLs arrive as query
// parameters; requests without them are sent back to the upload page.
func (a *App) ResultPage(w http.ResponseWriter, r *http.Request) {
	original := r.URL.Query().Get("original")
	staged := r.URL.Query().Get("staged")
	if original == "" || staged == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	a.render(w, "result.html", resultPageData{
		OriginalImageURL: original,
		StagedImageURL:   staged,
	})
}

func (a *App) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		a.Logger.Error().Err(err).Str("template", name).Msg("render failed")
	}
}
