package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"server/internal/providers/fal"
	"server/internal/staging"
)

// maxUploadBytes caps the multipart body. The client-side preparer targets
// ~4 MB; the extra headroom covers its best-effort fallback path.
const maxUploadBytes = 25 << 20

// StageRoom handles POST /api/stage-room: one multipart field `roomImage`
// in, the staged result JSON out. The request blocks for the full duration
// of the upstream generation.
func (a *App) StageRoom(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("roomImage")
	if err != nil {
		a.error(w, http.StatusBadRequest, "No room image provided")
		return
	}
	defer file.Close()

	filename := ""
	contentType := ""
	if header != nil {
		filename = header.Filename
		contentType = header.Header.Get("Content-Type")
	}

	// HEIC/HEIF is rejected by the generation capability, so fail fast
	// before touching the network.
	if staging.IsHEIC(filename, contentType) {
		a.error(w, http.StatusUnsupportedMediaType,
			"Unsupported image format (HEIC/HEIF). Please upload JPG, PNG, or WEBP.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		a.error(w, http.StatusBadRequest, "No room image provided")
		return
	}

	ctx := r.Context()
	if a.Config.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.GenerationTimeout)
		defer cancel()
	}

	result, err := a.Stager.Stage(ctx, staging.StageRequest{
		Data:     data,
		MIME:     contentType,
		Filename: filename,
		Origin:   a.requestOrigin(r),
	})
	if err != nil {
		a.stageFailure(w, r, err)
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"success":          true,
		"originalImageUrl": result.OriginalImageURL,
		"stagedImageUrl":   result.StagedImageURL,
		"description":      result.Description,
	})
}

// stageFailure maps staging errors onto the wire: upstream status and detail
// when the failure came from an external capability, 500 otherwise.
func (a *App) stageFailure(w http.ResponseWriter, r *http.Request, err error) {
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("staging failed")

	status := http.StatusInternalServerError
	var details any
	if de, ok := fal.AsDownstream(err); ok {
		if de.Status > 0 {
			status = de.Status
		}
		details = de.Detail
	}
	if details == nil {
		if msg := err.Error(); msg != "" {
			details = msg
		} else {
			details = "Unknown error"
		}
	}
	a.failure(w, status, "Failed to stage room", details)
}

// requestOrigin reconstructs the scheme://host origin of the request, honoring
// a configured public origin and proxy headers.
func (a *App) requestOrigin(r *http.Request) string {
	if a.Config.PublicOrigin != "" {
		return strings.TrimRight(a.Config.PublicOrigin, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
