package ui

import (
	goerrors "errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tabchat/adapters/parse"
	"tabchat/domain/chat"
	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/internal/engine"
	"tabchat/internal/errors"
	"tabchat/internal/session"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Count(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.registry.Create()
	c.JSON(http.StatusCreated, sess.Summary())
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Summary())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id, err := core.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	if err := s.registry.Delete(id); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpload(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	if header.Size > s.upload.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the upload size limit",
			"limit": s.upload.MaxBytes,
		})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.upload.MaxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading upload failed"})
		return
	}
	if int64(len(data)) > s.upload.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the upload size limit",
			"limit": s.upload.MaxBytes,
		})
		return
	}

	parser, err := parse.ForFile(header.Filename, c.PostForm("type"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	ds, err := parser.Parse(c.Request.Context(), header.Filename, data)
	if err != nil {
		log.Printf("[Server] Upload parse failed for %s: %v", header.Filename, err)
		s.renderError(c, err)
		return
	}

	cleaned, report := table.Clean(ds, table.DefaultCleanConfig())

	summary, err := sess.AttachDataset(cleaned, header.Filename)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sess.ID().String(),
		"filename":     header.Filename,
		"rows":         summary.Rows,
		"columns":      summary.Columns,
		"schema":       cleaned.Schema(),
		"preview":      engine.BuildPreview(cleaned),
		"clean_report": report.String(),
		"warnings":     cleaned.Warnings(),
	})
}

func (s *Server) handleChannel(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}
	if err := s.channel.Serve(c.Writer, c.Request, sess); err != nil {
		log.Printf("[Server] Channel upgrade failed: %v", err)
	}
}

func (s *Server) handleJobStatus(c *gin.Context) {
	id, err := core.ParseJobID(c.Param("jobID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	status, err := s.coordinator.Status(id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleArtifact(c *gin.Context) {
	id, err := core.ParseJobID(c.Param("jobID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	format := chat.Format(c.Param("format"))
	if !chat.ValidFormat(format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown format"})
		return
	}

	locator, err := s.coordinator.Artifact(id, format)
	if err != nil {
		s.renderError(c, err)
		return
	}

	// Remote renderers return URLs, local ones file paths
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		c.Redirect(http.StatusFound, locator)
		return
	}
	c.File(locator)
}

func (s *Server) handleCreateMergeTask(c *gin.Context) {
	id := s.merges.CreateTask()
	c.JSON(http.StatusCreated, gin.H{"task_id": id.String(), "state": "queued"})
}

func (s *Server) handleMergeAddFile(c *gin.Context) {
	id, err := core.ParseTaskID(c.Param("taskID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.upload.MaxBytes+1))
	if err != nil || int64(len(data)) > s.upload.MaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	parser, err := parse.ForFile(header.Filename, c.PostForm("type"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	ds, err := parser.Parse(c.Request.Context(), header.Filename, data)
	if err != nil {
		s.renderError(c, err)
		return
	}

	if err := s.merges.AddFile(id, header.Filename, ds); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id.String(), "filename": header.Filename, "rows": ds.RowCount()})
}

func (s *Server) handleMergeStart(c *gin.Context) {
	id, err := core.ParseTaskID(c.Param("taskID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	if err := s.merges.Start(id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": id.String(), "state": "processing"})
}

func (s *Server) handleMergeStatus(c *gin.Context) {
	id, err := core.ParseTaskID(c.Param("taskID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	status, err := s.merges.Status(id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleMergeDownload(c *gin.Context) {
	id, err := core.ParseTaskID(c.Param("taskID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	path, err := s.merges.OutputPath(id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.FileAttachment(path, "merged.xlsx")
}

// lookupSession resolves the :id parameter, writing the error response on
// failure.
func (s *Server) lookupSession(c *gin.Context) (*session.Session, bool) {
	id, err := core.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	found, err := s.registry.Get(id)
	if err != nil {
		s.renderError(c, err)
		return nil, false
	}
	return found, true
}

// renderError maps domain sentinels and app error codes to HTTP statuses
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case goerrors.Is(err, core.ErrSessionNotFound),
		goerrors.Is(err, core.ErrJobNotFound),
		goerrors.Is(err, core.ErrTaskNotFound),
		goerrors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case goerrors.Is(err, core.ErrSessionExpired):
		status = http.StatusGone
	case goerrors.Is(err, core.ErrSessionClosed):
		status = http.StatusConflict
	case goerrors.Is(err, core.ErrArtifactNotReady):
		status = http.StatusConflict
	case goerrors.Is(err, core.ErrArtifactFailed):
		status = http.StatusBadGateway
	case goerrors.Is(err, core.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	default:
		switch errors.GetCode(err) {
		case errors.CodeInvalidInput, errors.CodeValidationError, errors.CodeParseError:
			status = http.StatusBadRequest
		case errors.CodeNotFound:
			status = http.StatusNotFound
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
