package ports

import (
	"context"

	"tabchat/domain/table"
)

// Parser is the upload collaborator: it turns raw file bytes into a Dataset.
// The core only consumes the returned Dataset or error; format-specific
// parsing lives behind this port.
type Parser interface {
	// Parse converts raw bytes into a Dataset, or a PARSE_ERROR AppError
	Parse(ctx context.Context, filename string, data []byte) (*table.Dataset, error)

	// Supports reports whether this parser handles the given filename
	Supports(filename string) bool
}
