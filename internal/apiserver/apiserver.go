// Package apiserver exposes the batch pipeline over HTTP: submit a run,
// poll its status, and read back the report or validation queue.
package apiserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// RunStatus is the lifecycle state of a submitted run.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

type run struct {
	ID     string
	Status RunStatus
	Report *model.RunReport
	Err    string
}

// Server is the HTTP API server wrapping a pipeline.Pipeline.
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *pipeline.Pipeline

	mu   sync.Mutex
	runs map[string]*run
}

// NewServer creates a new API server around the given pipeline.
func NewServer(config *Config, p *pipeline.Pipeline) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:   config,
		router:   router,
		pipeline: p,
		runs:     make(map[string]*run),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/runs", s.handleSubmitRun)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/queue", s.handleGetQueue)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type submitRunRequest struct {
	Paths []string `json:"paths"`
}

// handleSubmitRun accepts a list of file paths, starts the batch
// asynchronously, and returns 202 with a run id to poll.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req submitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Paths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths must not be empty"})
		return
	}

	id := uuid.NewString()
	r := &run{ID: id, Status: RunPending}

	s.mu.Lock()
	s.runs[id] = r
	s.mu.Unlock()

	go s.execute(r, req.Paths)

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": string(RunPending)})
}

func (s *Server) execute(r *run, paths []string) {
	s.mu.Lock()
	r.Status = RunRunning
	s.mu.Unlock()

	report := s.pipeline.ProcessBatch(context.Background(), paths)

	s.mu.Lock()
	defer s.mu.Unlock()
	r.Report = report
	r.Status = RunDone
}

func (s *Server) lookupRun(id string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

// handleGetRun returns a run's status, and its report once finished.
func (s *Server) handleGetRun(c *gin.Context) {
	r, ok := s.lookupRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Status {
	case RunDone:
		c.JSON(http.StatusOK, gin.H{"id": r.ID, "status": string(r.Status), "report": r.Report})
	case RunFailed:
		c.JSON(http.StatusOK, gin.H{"id": r.ID, "status": string(r.Status), "error": r.Err})
	default:
		c.JSON(http.StatusOK, gin.H{"id": r.ID, "status": string(r.Status)})
	}
}

// handleGetQueue returns the validation queue of a finished run.
func (s *Server) handleGetQueue(c *gin.Context) {
	r, ok := s.lookupRun(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Status != RunDone {
		c.JSON(http.StatusOK, gin.H{"id": r.ID, "status": string(r.Status), "queue": []model.QueueEntry{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": r.ID, "status": string(r.Status), "queue": r.Report.ValidationQueue})
}
