package handlers

import (
	"fmt"
	"net/http"

	"docsign/internal/services"

	"github.com/gin-gonic/gin"
)

type VerifyOtpRequest struct {
	Code string `json:"code" binding:"required"`
}

type SubmitSignatureRequest struct {
	Claim          string `json:"claim" binding:"required"`
	Consent        bool   `json:"consent"`
	SignatureImage string `json:"signature_image"`
	TargetField    string `json:"target_field" binding:"required"`
}

// IssueOtp sends a fresh one-time code to the signer behind the token. In dev
// mode the code comes back in the response body instead of going out by mail.
func (h *Handler) IssueOtp(c *gin.Context) {
	signer, err := h.contracts.SignerByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	devCode, err := h.signing.IssueOtp(c.Request.Context(), signer.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"message": "Code sent"}
	if devCode != "" {
		resp["dev_code"] = devCode
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyOtp trades a valid one-time code for a short-lived signing claim.
func (h *Handler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	signer, err := h.contracts.SignerByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	claim, err := h.signing.VerifyOtp(c.Request.Context(), signer.ID, req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim": claim})
}

// SubmitSignature commits the signature, then regenerates the stored document
// with the image merged in. The commit is the point of no return: a failed
// regeneration leaves a SIGNED contract whose document trails by one render,
// recoverable by re-running the regeneration.
func (h *Handler) SubmitSignature(c *gin.Context) {
	var req SubmitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	signer, err := h.contracts.SignerByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	err = h.signing.Submit(c.Request.Context(), services.SubmitRequest{
		SignerID:       signer.ID,
		Claim:          req.Claim,
		Consent:        req.Consent,
		SignatureImage: req.SignatureImage,
		TargetField:    req.TargetField,
		IP:             c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	contract, err := h.contracts.RegenerateDocument(c.Request.Context(), signer.ContractID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        contract.Status,
		"document_hash": contract.DocumentHash,
	})
}

// DownloadDocument streams the current document for the signer's contract.
// Consumed tokens still resolve here so a signer can fetch the finished
// artifact after signing.
func (h *Handler) DownloadDocument(c *gin.Context) {
	data, contract, err := h.contracts.DocumentBySignerToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=contract_%s.docx", contract.ID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}
