package fal

import (
	"context"
	"errors"

	"server/internal/staging"
)

// EditGenerator adapts the queue client to the staging Generator contract for
// one fal application (an image-editing model such as nano-banana/edit).
type EditGenerator struct {
	client *Client
	app    string
}

// NewEditGenerator binds client to the given fal application id.
func NewEditGenerator(client *Client, app string) *EditGenerator {
	return &EditGenerator{client: client, app: app}
}

// Edit submits the prompt and ordered image URLs for a single JPEG output and
// blocks until the generation completes.
func (g *EditGenerator) Edit(ctx context.Context, prompt string, imageURLs []string) (staging.Generation, error) {
	if g.client == nil {
		return staging.Generation{}, errors.New("fal: generator not configured")
	}
	result, err := g.client.Subscribe(ctx, g.app, GenerateInput{
		Prompt:       prompt,
		ImageURLs:    imageURLs,
		NumImages:    1,
		OutputFormat: "jpeg",
	})
	if err != nil {
		return staging.Generation{}, err
	}
	return staging.Generation{
		ImageURL:    result.FirstImageURL(),
		Description: result.FirstDescription(),
	}, nil
}

var (
	_ staging.Generator = (*EditGenerator)(nil)
	_ staging.Uploader  = (*Client)(nil)
)
