package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"docsign/internal/models"
	"docsign/internal/services"

	"github.com/gin-gonic/gin"
)

type TemplateResponse struct {
	TemplateID string   `json:"template_id"`
	Version    int      `json:"version"`
	Fields     []string `json:"fields,omitempty"`
	Message    string   `json:"message"`
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	upload, ok := h.readTemplateUpload(c)
	if !ok {
		return
	}

	template, err := h.templates.Create(c.Request.Context(), upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TemplateResponse{
		TemplateID: template.ID,
		Version:    template.Version,
		Message:    "Template created successfully",
	})
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	upload, ok := h.readTemplateUpload(c)
	if !ok {
		return
	}

	template, err := h.templates.Update(c.Request.Context(), c.Param("templateId"), upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TemplateResponse{
		TemplateID: template.ID,
		Version:    template.Version,
		Message:    "Template updated successfully",
	})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	template, err := h.templates.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *Handler) GetTemplateMetadata(c *gin.Context) {
	meta, err := h.templates.Metadata(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fields":  meta.Fields,
		"options": meta.Options,
		"mirrors": meta.Mirrors,
	})
}

func (h *Handler) readTemplateUpload(c *gin.Context) (upload services.TemplateUpload, ok bool) {
	file, header, err := c.Request.FormFile("template")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return upload, false
	}
	defer file.Close()

	if filepath.Ext(header.Filename) != ".docx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .docx files are supported"})
		return upload, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return upload, false
	}

	var defs []models.VariableDefinition
	if raw := c.PostForm("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &defs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variables payload"})
			return upload, false
		}
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}

	upload.Name = name
	upload.Content = content
	upload.Variables = defs
	return upload, true
}
