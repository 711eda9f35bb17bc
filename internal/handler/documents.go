package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/models"
)

// Upload handles a PDF upload: store the file, count its pages, create
// the document record with an empty annotation collection.
// @Summary Upload PDF
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF file"
// @Success 201 {object} models.DocumentResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/documents/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	file, err := c.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "please upload a PDF file",
		})
		return
	}

	if file.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: fmt.Sprintf("file too large, maximum is %d MB", h.cfg.MaxUploadBytes/(1024*1024)),
		})
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		h.fail(c, err, "upload")
		return
	}

	fileName := uuid.NewString() + ".pdf"
	path := filepath.Join(h.cfg.UploadDir, fileName)
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.fail(c, err, "upload")
		return
	}

	pages, err := h.pages.PageCount(path)
	if err != nil {
		_ = os.Remove(path)
		h.logger.Warn("Rejected upload", zap.String("name", file.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "file is not a valid PDF",
		})
		return
	}

	doc, err := h.repo.CreateDocument(c.Request.Context(), models.Document{
		OwnerID:      ident.UserID,
		OriginalName: file.Filename,
		FileName:     fileName,
		FilePath:     path,
		FileSize:     file.Size,
		Pages:        pages,
	})
	if err != nil {
		_ = os.Remove(path)
		h.fail(c, err, "upload")
		return
	}

	c.JSON(http.StatusCreated, models.DocumentResponse{Data: *doc})
}

// List returns the caller's documents, newest upload first.
// @Summary List documents
// @Tags documents
// @Produce json
// @Success 200 {object} models.DocumentsResponse
// @Router /api/v1/documents [get]
func (h *Handler) List(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	docs, err := h.repo.ListDocuments(c.Request.Context(), ident.UserID)
	if err != nil {
		h.fail(c, err, "list")
		return
	}

	c.JSON(http.StatusOK, models.DocumentsResponse{Data: docs})
}

// GetFile streams the PDF bytes for inline viewing.
// @Summary Fetch PDF file
// @Tags documents
// @Produce application/pdf
// @Param id path string true "Document ID"
// @Success 200
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/documents/{id} [get]
func (h *Handler) GetFile(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	doc, err := h.repo.GetDocument(c.Request.Context(), c.Param("id"), ident.UserID)
	if err != nil {
		h.fail(c, err, "get file")
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalName))
	c.File(doc.FilePath)
}

// GetAnnotations returns the document's stored annotation sequence.
// @Summary Get annotations
// @Tags annotations
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} models.AnnotationsResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/documents/{id}/annotations [get]
func (h *Handler) GetAnnotations(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	annotations, err := h.sync.Load(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		h.fail(c, err, "get annotations")
		return
	}

	c.JSON(http.StatusOK, models.AnnotationsResponse{Data: annotations})
}

// ReplaceAnnotations overwrites the document's entire annotation
// sequence with the supplied one. There is no per-annotation endpoint;
// the last save wins.
// @Summary Replace annotations
// @Tags annotations
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body models.ReplaceAnnotationsRequest true "Full annotation sequence"
// @Success 200 {object} models.AnnotationsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/documents/{id}/annotations [put]
func (h *Handler) ReplaceAnnotations(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	var req models.ReplaceAnnotationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	if _, err := h.sync.Save(c.Request.Context(), c.Param("id"), ident, req.Annotations); err != nil {
		h.fail(c, err, "replace annotations")
		return
	}

	annotations := req.Annotations
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	c.JSON(http.StatusOK, models.AnnotationsResponse{Data: annotations})
}

// Delete removes a document, its stored file and its annotations.
// @Summary Delete document
// @Tags documents
// @Param id path string true "Document ID"
// @Success 204 "No Content"
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/documents/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	ident, ok := h.identity(c)
	if !ok {
		return
	}

	id := c.Param("id")
	doc, err := h.repo.GetDocument(c.Request.Context(), id, ident.UserID)
	if err != nil {
		h.fail(c, err, "delete")
		return
	}

	if err := h.repo.DeleteDocument(c.Request.Context(), id, ident.UserID); err != nil {
		h.fail(c, err, "delete")
		return
	}

	h.sync.Forget(c.Request.Context(), id)
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("Failed to remove stored file", zap.String("path", doc.FilePath), zap.Error(err))
	}

	c.Status(http.StatusNoContent)
}
