package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tabchat/domain/chat"
	"tabchat/domain/table"
	"tabchat/ports"
)

func snapshot(t *testing.T) *table.Dataset {
	t.Helper()
	ds, err := table.FromRecords(
		[]string{"Region", "Sales", "Active"},
		[][]string{
			{"West", "100", "true"},
			{"East", "200", "false"},
		},
	)
	require.NoError(t, err)
	return ds
}

func TestSpreadsheetRenderWritesWorkbook(t *testing.T) {
	r, err := NewSpreadsheetRenderer(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, chat.FormatSpreadsheet, r.Format())

	path, err := r.Render(context.Background(), ports.RenderRequest{
		Dataset: snapshot(t),
		Title:   "Sales",
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Region", "Sales", "Active"}, rows[0])
	assert.Equal(t, "West", rows[1][0])
	assert.Equal(t, "100", rows[1][1])
}

func TestSpreadsheetRenderHonorsCancellation(t *testing.T) {
	r, err := NewSpreadsheetRenderer(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Render(ctx, ports.RenderRequest{Dataset: snapshot(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteRenderSuccess(t *testing.T) {
	var payload renderPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"locator": "https://artifacts/slides/42"}`))
	}))
	defer server.Close()

	r := NewRemoteRenderer(chat.FormatSlides, server.URL, 5*time.Second)
	locator, err := r.Render(context.Background(), ports.RenderRequest{
		Dataset: snapshot(t),
		Title:   "Deck",
		Options: map[string]string{"slide_style": "business"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://artifacts/slides/42", locator)
	assert.Equal(t, "slides", payload.Format)
	assert.Equal(t, "business", payload.Options["slide_style"])
	assert.Len(t, payload.Rows, 2)
}

func TestRemoteRenderReportsCollaboratorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "template not found"}`))
	}))
	defer server.Close()

	r := NewRemoteRenderer(chat.FormatPDF, server.URL, 5*time.Second)
	_, err := r.Render(context.Background(), ports.RenderRequest{Dataset: snapshot(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestRemoteRenderUnreachable(t *testing.T) {
	r := NewRemoteRenderer(chat.FormatChart, "http://127.0.0.1:1", time.Second)
	_, err := r.Render(context.Background(), ports.RenderRequest{Dataset: snapshot(t)})
	assert.Error(t, err)
}
