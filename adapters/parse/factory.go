package parse

import (
	"path/filepath"
	"strings"

	"tabchat/internal/errors"
	"tabchat/ports"
)

// SupportedExtensions lists the upload formats the factory can dispatch
var SupportedExtensions = []string{".xlsx", ".xls", ".csv"}

// ForFile picks a parser for the given filename, honoring a declared type
// over the extension when provided.
func ForFile(filename, declaredType string) (ports.Parser, error) {
	kind := strings.ToLower(strings.TrimSpace(declaredType))
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}

	switch kind {
	case "xlsx", "xls", "excel", "spreadsheet":
		return &ExcelParser{}, nil
	case "csv":
		return &CSVParser{}, nil
	default:
		return nil, errors.ParseError("unsupported file type: " + kind + " (supported: Excel, CSV)")
	}
}
