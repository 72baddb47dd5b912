package handlers

import (
	"errors"
	"net/http"

	"docsign/internal/processor"
	"docsign/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	templates *services.TemplateService
	contracts *services.ContractService
	signing   *services.SigningService
	audit     *services.AuditService
	logger    *zap.Logger
}

func New(templates *services.TemplateService, contracts *services.ContractService, signing *services.SigningService, audit *services.AuditService, logger *zap.Logger) *Handler {
	return &Handler{
		templates: templates,
		contracts: contracts,
		signing:   signing,
		audit:     audit,
		logger:    logger.With(zap.String("component", "handlers")),
	}
}

// RegisterRoutes wires the API under the given group.
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/templates", h.CreateTemplate)
	v1.PUT("/templates/:templateId", h.UpdateTemplate)
	v1.GET("/templates/:templateId", h.GetTemplate)
	v1.GET("/templates/:templateId/metadata", h.GetTemplateMetadata)
	v1.POST("/templates/:templateId/share", h.CreateShareableDraft)

	v1.POST("/contracts", h.CreateContract)
	v1.GET("/contracts/:contractId", h.GetContract)
	v1.PUT("/contracts/:contractId", h.UpdateDraft)
	v1.GET("/contracts/:contractId/audit", h.GetAuditTrail)

	v1.POST("/sign/:token/otp", h.IssueOtp)
	v1.POST("/sign/:token/verify", h.VerifyOtp)
	v1.POST("/sign/:token/submit", h.SubmitSignature)
	v1.GET("/sign/:token/document", h.DownloadDocument)
}

// respondError maps service error kinds to HTTP outcomes. Render errors go
// back verbatim: the message is written for the template author.
func (h *Handler) respondError(c *gin.Context, err error) {
	var renderErr *processor.RenderError
	switch {
	case errors.As(err, &renderErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": renderErr.Error()})
	case errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrContractNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrContractSigned),
		errors.Is(err, services.ErrSignerAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidOrExpiredOtp),
		errors.Is(err, services.ErrInvalidOrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConsentRequired),
		errors.Is(err, services.ErrSignatureRequired),
		errors.Is(err, services.ErrInvalidDefinition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
