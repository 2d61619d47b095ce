// Package server exposes the declaration engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taridex/declaration-processor/internal/customsoffice"
	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/fields"
	"github.com/taridex/declaration-processor/internal/model"
	"github.com/taridex/declaration-processor/internal/rates"
	"github.com/taridex/declaration-processor/internal/store"
	"github.com/taridex/declaration-processor/internal/xmlexport"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config  *Config
	router  *gin.Engine
	store   store.Store
	rates   rates.Source
	offices customsoffice.Directory
}

// NewServer creates a new API server
func NewServer(config *Config, st store.Store, rateSource rates.Source, offices customsoffice.Directory) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:  config,
		router:  router,
		store:   st,
		rates:   rateSource,
		offices: offices,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/declarations", s.handleCreateDeclaration)
		v1.GET("/declarations", s.handleListDeclarations)
		v1.GET("/declarations/:id", s.handleGetDeclaration)
		v1.DELETE("/declarations/:id", s.handleDeleteDeclaration)

		v1.POST("/declarations/:id/documents", s.handleUploadDocument)
		v1.GET("/declarations/:id/documents", s.handleListDocuments)
		v1.DELETE("/declarations/:id/documents/:type", s.handleDeleteDocuments)

		v1.GET("/declarations/:id/fields", s.handleReadFields)
		v1.POST("/declarations/:id/fields", s.handleApplyFields)
		v1.GET("/declarations/:id/xml", s.handleExportXML)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateDeclaration(c *gin.Context) {
	var req CreateDeclarationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	decl, err := s.store.CreateDeclaration(c.Request.Context(), req.Name, req.Date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot create declaration", Details: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, decl)
}

func (s *Server) handleListDeclarations(c *gin.Context) {
	decls, err := s.store.ListDeclarations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot list declarations", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, decls)
}

func (s *Server) handleGetDeclaration(c *gin.Context) {
	decl, err := s.store.GetDeclaration(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "declaration not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot read declaration", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, decl)
}

func (s *Server) handleDeleteDeclaration(c *gin.Context) {
	err := s.store.DeleteDeclaration(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "declaration not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot delete declaration", Details: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	var req UploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	if !model.IsKnownDocType(req.TypeKey) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown document type key",
			Details: fmt.Sprintf("type_key %q is not accepted", req.TypeKey),
		})
		return
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed payload", Details: err.Error()})
		return
	}

	doc, err := s.store.SaveDocument(c.Request.Context(), c.Param("id"), model.DocType(req.TypeKey), payload)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "declaration not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot store document", Details: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, DocumentResponse{
		ID:        doc.ID,
		TypeKey:   string(doc.TypeKey),
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	if _, err := s.store.GetDeclaration(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "declaration not found"})
		return
	}
	docs, err := s.store.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot list documents", Details: err.Error()})
		return
	}
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, DocumentResponse{
			ID:        doc.ID,
			TypeKey:   string(doc.TypeKey),
			CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteDocuments(c *gin.Context) {
	typeKey := c.Param("type")
	if !model.IsKnownDocType(typeKey) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown document type key"})
		return
	}
	if err := s.store.DeleteDocuments(c.Request.Context(), c.Param("id"), model.DocType(typeKey)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot unlink documents", Details: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReadFields(c *gin.Context) {
	resp, status, errResp := s.computeFields(c.Request.Context(), c.Param("id"))
	if errResp != nil {
		c.JSON(status, errResp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleApplyFields(c *gin.Context) {
	var req ApplyFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	declID := c.Param("id")
	unlock := s.store.Lock(declID)
	defer unlock()

	in, status, errResp := s.assembleInputs(c.Request.Context(), declID)
	if errResp != nil {
		c.JSON(status, errResp)
		return
	}

	merged, fieldMap := fields.ApplyChanges(c.Request.Context(), in, req.Changes)
	if err := s.store.SaveOverrides(c.Request.Context(), declID, merged); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot persist overrides", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, FieldsResponse{
		Fields:       fieldMap,
		OverrideKeys: overrideKeys(merged),
	})
}

func (s *Server) handleExportXML(c *gin.Context) {
	resp, status, errResp := s.computeFields(c.Request.Context(), c.Param("id"))
	if errResp != nil {
		c.JSON(status, errResp)
		return
	}

	out, err := xmlexport.Build(resp.Fields)
	if err != nil {
		var exportErr *model.ExportError
		if errors.As(err, &exportErr) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "export failed", Details: exportErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export failed", Details: err.Error()})
		return
	}

	filename := fmt.Sprintf("declaration_%s.xml", c.Param("id"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", out)
}

// assembleInputs loads everything one compute pass needs for a
// declaration.
func (s *Server) assembleInputs(ctx context.Context, declID string) (fields.Inputs, int, *ErrorResponse) {
	decl, err := s.store.GetDeclaration(ctx, declID)
	if errors.Is(err, store.ErrNotFound) {
		return fields.Inputs{}, http.StatusNotFound, &ErrorResponse{Error: "declaration not found"}
	}
	if err != nil {
		return fields.Inputs{}, http.StatusInternalServerError, &ErrorResponse{Error: "cannot read declaration", Details: err.Error()}
	}

	docs, err := s.store.ListDocuments(ctx, declID)
	if err != nil {
		return fields.Inputs{}, http.StatusInternalServerError, &ErrorResponse{Error: "cannot list documents", Details: err.Error()}
	}

	ds, err := dataset.Build(decl, docs)
	if err != nil {
		var srcErr *model.SourceDataError
		if errors.As(err, &srcErr) {
			return fields.Inputs{}, http.StatusUnprocessableEntity, &ErrorResponse{Error: "malformed source document", Details: srcErr.Error()}
		}
		return fields.Inputs{}, http.StatusInternalServerError, &ErrorResponse{Error: "cannot merge documents", Details: err.Error()}
	}

	overrides, err := s.store.Overrides(ctx, declID)
	if err != nil {
		return fields.Inputs{}, http.StatusInternalServerError, &ErrorResponse{Error: "cannot read overrides", Details: err.Error()}
	}

	return fields.Inputs{
		DeclarationID: declID,
		DS:            ds,
		Overrides:     overrides,
		Rates:         s.rates,
		Offices:       s.offices,
	}, 0, nil
}

// computeFields runs the full read path: merge, assemble, never cache.
func (s *Server) computeFields(ctx context.Context, declID string) (FieldsResponse, int, *ErrorResponse) {
	in, status, errResp := s.assembleInputs(ctx, declID)
	if errResp != nil {
		return FieldsResponse{}, status, errResp
	}
	return FieldsResponse{
		Fields:       fields.Assemble(ctx, in),
		OverrideKeys: overrideKeys(in.Overrides),
	}, 0, nil
}

func overrideKeys(overrides model.Overrides) []string {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
