package ports

import (
	"context"

	"tabchat/domain/chat"
	"tabchat/domain/table"
)

// RenderRequest carries an immutable Dataset snapshot plus format-specific
// options to a renderer collaborator.
type RenderRequest struct {
	Dataset *table.Dataset
	Title   string
	Options map[string]string
}

// Renderer is one external renderer collaborator. Render returns an artifact
// locator (a path or URL) or an error; one format's failure never aborts the
// other formats of the same job.
type Renderer interface {
	Format() chat.Format
	Render(ctx context.Context, req RenderRequest) (locator string, err error)
}
