package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tabchat/domain/chat"
	"tabchat/ports"
)

// RemoteRenderer dispatches a render request to an external renderer
// collaborator over HTTP. One instance per output format (slides, pdf,
// chart); the collaborator answers with an artifact locator.
type RemoteRenderer struct {
	format  chat.Format
	baseURL string
	client  *http.Client
}

func NewRemoteRenderer(format chat.Format, baseURL string, timeout time.Duration) *RemoteRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteRenderer{
		format:  format,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *RemoteRenderer) Format() chat.Format {
	return r.format
}

// renderPayload is the wire shape sent to renderer collaborators
type renderPayload struct {
	Format  string            `json:"format"`
	Title   string            `json:"title,omitempty"`
	Columns []string          `json:"columns"`
	Rows    [][]string        `json:"rows"`
	Options map[string]string `json:"options,omitempty"`
}

func (r *RemoteRenderer) Render(ctx context.Context, req ports.RenderRequest) (string, error) {
	payload := renderPayload{
		Format:  string(r.format),
		Title:   req.Title,
		Columns: req.Dataset.ColumnNames(),
		Rows:    req.Dataset.HeadRecords(req.Dataset.RowCount()),
		Options: req.Options,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/render", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s renderer unreachable: %w", r.format, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s renderer error (status %d): %s", r.format, resp.StatusCode, string(raw))
	}

	var out struct {
		Locator string `json:"locator"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("malformed renderer response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%s renderer failed: %s", r.format, out.Error)
	}
	if out.Locator == "" {
		return "", fmt.Errorf("%s renderer returned no artifact locator", r.format)
	}
	return out.Locator, nil
}
