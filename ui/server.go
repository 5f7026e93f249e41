package ui

import (
	"log"

	"github.com/gin-gonic/gin"

	"tabchat/internal/channel"
	"tabchat/internal/config"
	"tabchat/internal/export"
	"tabchat/internal/merge"
	"tabchat/internal/session"
)

// Server is the HTTP surface: session lifecycle, uploads, the chat channel
// upgrade, export job polling and artifact download, and merge tasks.
type Server struct {
	router      *gin.Engine
	registry    *session.Registry
	channel     *channel.Server
	coordinator *export.Coordinator
	merges      *merge.Service
	upload      config.UploadConfig
}

// NewServer wires the HTTP layer over its collaborators
func NewServer(registry *session.Registry, coordinator *export.Coordinator, merges *merge.Service, upload config.UploadConfig) *Server {
	s := &Server{
		router:      gin.Default(),
		registry:    registry,
		channel:     channel.NewServer(RenderMarkdown),
		coordinator: coordinator,
		merges:      merges,
		upload:      upload,
	}
	s.setupRoutes()
	return s
}

// Router exposes the gin engine, for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	chat := v1.Group("/chat")
	chat.POST("/sessions", s.handleCreateSession)
	chat.GET("/sessions/:id", s.handleGetSession)
	chat.DELETE("/sessions/:id", s.handleDeleteSession)
	chat.POST("/sessions/:id/upload", s.handleUpload)
	chat.GET("/ws/:id", s.handleChannel)

	exportGroup := v1.Group("/export")
	exportGroup.GET("/jobs/:jobID", s.handleJobStatus)
	exportGroup.GET("/jobs/:jobID/artifact/:format", s.handleArtifact)

	mergeGroup := v1.Group("/merge")
	mergeGroup.POST("/tasks", s.handleCreateMergeTask)
	mergeGroup.POST("/tasks/:taskID/files", s.handleMergeAddFile)
	mergeGroup.POST("/tasks/:taskID/start", s.handleMergeStart)
	mergeGroup.GET("/tasks/:taskID", s.handleMergeStatus)
	mergeGroup.GET("/tasks/:taskID/download", s.handleMergeDownload)
}

// Start runs the server on the given address, blocking
func (s *Server) Start(addr string) error {
	log.Printf("[Server] Listening on %s", addr)
	return s.router.Run(addr)
}
