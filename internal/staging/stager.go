package staging

import (
	"context"
	"errors"
	"fmt"

	"server/internal/infra"
)

// DefaultDescription is returned when the capability produces no descriptive
// text of its own.
const DefaultDescription = "Room staged successfully"

// StageRequest carries one validated room image through the staging flow.
// Origin is the scheme://host of the incoming request, used to decide how
// reference images are resolved.
type StageRequest struct {
	Data     []byte
	MIME     string
	Filename string
	Origin   string
}

// StageResult is the outcome handed back to the HTTP layer.
type StageResult struct {
	OriginalImageURL string
	StagedImageURL   string
	Description      string
	ReferenceCount   int
}

// Stager orchestrates one staging request: upload the original, resolve
// style references, build the instruction and invoke the generation
// capability. It holds no per-request state and is safe for concurrent use.
type Stager struct {
	uploader  Uploader
	generator Generator
	refs      ReferenceResolver
	prompt    PromptBuilder
	logger    infra.Logger
}

// NewStager wires a Stager from its injected collaborators.
func NewStager(uploader Uploader, generator Generator, refs ReferenceResolver, prompt PromptBuilder, logger infra.Logger) *Stager {
	return &Stager{
		uploader:  uploader,
		generator: generator,
		refs:      refs,
		prompt:    prompt,
		logger:    logger,
	}
}

// Stage runs the full flow synchronously. Reference-resolution failures are
// degraded to an empty reference set; storage and generation failures are
// returned to the caller untouched so the HTTP layer can map their status.
func (s *Stager) Stage(ctx context.Context, req StageRequest) (*StageResult, error) {
	if len(req.Data) == 0 {
		return nil, errors.New("staging: empty image payload")
	}

	originalURL, err := s.uploader.Upload(ctx, req.Data, req.MIME, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("staging: upload original: %w", err)
	}

	policy := PolicyForOrigin(req.Origin, s.uploader)
	refURLs, err := s.refs.Resolve(ctx, policy)
	if err != nil {
		// Staging proceeds without style references rather than failing the
		// whole request.
		s.logger.Warn().Err(err).Msg("reference resolution failed, continuing without references")
		refURLs = nil
	}

	prompt := s.prompt.Build(len(refURLs))
	imageURLs := append([]string{originalURL}, refURLs...)

	gen, err := s.generator.Edit(ctx, prompt, imageURLs)
	if err != nil {
		return nil, err
	}

	description := gen.Description
	if description == "" {
		description = DefaultDescription
	}

	s.logger.Info().
		Int("references", len(refURLs)).
		Str("original", originalURL).
		Str("staged", gen.ImageURL).
		Msg("room staged")

	return &StageResult{
		OriginalImageURL: originalURL,
		StagedImageURL:   gen.ImageURL,
		Description:      description,
		ReferenceCount:   len(refURLs),
	}, nil
}
