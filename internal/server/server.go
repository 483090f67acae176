// Package server exposes the pipeline over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/analyze"
	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/pipeline"
	"github.com/agenthands/actigraph/internal/retrieve"
)

type Server struct {
	pipeline *pipeline.Pipeline
}

func NewServer(p *pipeline.Pipeline) *Server {
	return &Server{pipeline: p}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/query", s.Query)
	r.POST("/ingest", s.Ingest)
	r.GET("/status", s.Status)
	r.GET("/communities", s.Communities)
	r.GET("/summary", s.Summary)

	return r
}

type QueryRequest struct {
	Query  string `json:"query" binding:"required"`
	TopK   int    `json:"top_k"`
	Graph  bool   `json:"graph"`
	Rerank bool   `json:"rerank"`
	Answer bool   `json:"answer"`
}

func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	rt := s.pipeline.Retriever()
	opts := retrieve.Options{TopK: req.TopK, WithGraph: req.Graph, Rerank: req.Rerank}
	results, err := rt.Search(c.Request.Context(), req.Query, opts)
	if err != nil {
		if errors.Is(err, retrieve.ErrIndexNotReady) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Get().Error("search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	resp := gin.H{"results": results}
	if req.Answer {
		answer, err := rt.Answer(c.Request.Context(), req.Query, results)
		if err != nil {
			logger.Get().Error("answer generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "answer generation failed"})
			return
		}
		resp["answer"] = answer
	}
	c.JSON(http.StatusOK, resp)
}

type IngestRequest struct {
	FullRebuild bool `json:"full_rebuild"`
}

func (s *Server) Ingest(c *gin.Context) {
	var req IngestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	summary, err := s.pipeline.Run(c.Request.Context(), req.FullRebuild)
	if err != nil {
		logger.Get().Error("ingest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) Communities(c *gin.Context) {
	communities, err := s.pipeline.Communities(c.Request.Context())
	if err != nil {
		logger.Get().Error("community detection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community detection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": communities})
}

func (s *Server) Summary(c *gin.Context) {
	window, err := analyze.ParseWindow(c.DefaultQuery("last", "7d"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	since := time.Now().Add(-window).UnixMilli()
	summary, err := s.pipeline.Summarize(c.Request.Context(), since, limit)
	if err != nil {
		logger.Get().Error("activity summarization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activity summarization failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) Status(c *gin.Context) {
	status, err := s.pipeline.Status(c.Request.Context())
	if err != nil {
		logger.Get().Error("status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}
	c.JSON(http.StatusOK, status)
}
