package handlers

import (
	"net/http"

	"docsign/internal/models"
	"docsign/internal/services"

	"github.com/gin-gonic/gin"
)

type SignerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type CreateContractRequest struct {
	TemplateID string            `json:"template_id" binding:"required"`
	Variables  map[string]string `json:"variables"`
	Signers    []SignerRequest   `json:"signers" binding:"required,min=1"`
}

type UpdateContractRequest struct {
	Variables map[string]string `json:"variables"`
	Signers   []SignerRequest   `json:"signers"`
}

type ContractResponse struct {
	ContractID   string                `json:"contract_id"`
	Status       models.ContractStatus `json:"status"`
	DocumentHash string                `json:"document_hash"`
	Signers      []SignerResponse      `json:"signers,omitempty"`
}

type SignerResponse struct {
	SignerID string `json:"signer_id"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}

func (h *Handler) CreateContract(c *gin.Context) {
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	signers := make([]services.SignerInput, len(req.Signers))
	for i, in := range req.Signers {
		signers[i] = services.SignerInput{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: in.Role}
	}

	contract, err := h.contracts.Create(c.Request.Context(), req.TemplateID, req.Variables, signers)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.contractResponse(c, contract, true))
}

func (h *Handler) GetContract(c *gin.Context) {
	contract, err := h.contracts.GetByID(c.Request.Context(), c.Param("contractId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) UpdateDraft(c *gin.Context) {
	var req UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	signers := make([]services.SignerInput, len(req.Signers))
	for i, in := range req.Signers {
		signers[i] = services.SignerInput{Name: in.Name, Email: in.Email, Phone: in.Phone, Role: in.Role}
	}

	contract, err := h.contracts.UpdateDraft(c.Request.Context(), c.Param("contractId"), req.Variables, signers)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(c, contract, false))
}

func (h *Handler) GetAuditTrail(c *gin.Context) {
	contractID := c.Param("contractId")
	if _, err := h.contracts.GetByID(c.Request.Context(), contractID); err != nil {
		h.respondError(c, err)
		return
	}

	entries, err := h.audit.ContractTrail(c.Request.Context(), contractID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract_id": contractID, "entries": entries})
}

// CreateShareableDraft creates an empty draft of the template with an edit
// capability link for self-service filling.
func (h *Handler) CreateShareableDraft(c *gin.Context) {
	contract, err := h.contracts.CreateShareableDraft(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"contract_id": contract.ID,
		"edit_token":  contract.EditToken,
	})
}

func (h *Handler) contractResponse(c *gin.Context, contract *models.Contract, includeTokens bool) ContractResponse {
	resp := ContractResponse{
		ContractID:   contract.ID,
		Status:       contract.Status,
		DocumentHash: contract.DocumentHash,
	}
	if !includeTokens {
		return resp
	}
	signers, err := h.contracts.SignersByContract(c.Request.Context(), contract.ID)
	if err != nil {
		return resp
	}
	for _, signer := range signers {
		resp.Signers = append(resp.Signers, SignerResponse{
			SignerID: signer.ID,
			Name:     signer.Name,
			Token:    signer.Token,
		})
	}
	return resp
}
