package http

import (
	"net/http"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// Workflow endpoints

// handleSend godoc
// @Summary      Send for signature
// @Description  Move a draft to pending and notify the first tier of signers
// @Tags         Workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      400  {object}  Envelope  "VALIDATION_ERROR"
// @Failure      409  {object}  Envelope  "INVALID_STATE or CONFLICT"
// @Router       /documents/{id}/send [post]
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	doc, err := s.workflowService.Send(r.Context(), identity, r.PathValue("id"), requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleVoid godoc
// @Summary      Void document
// @Description  Cancel a pending document. Signatures already captured are kept.
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true   "Document ID"
// @Param        request  body      driving.VoidRequest  false  "Reason"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      409  {object}  Envelope  "INVALID_STATE"
// @Router       /documents/{id}/void [post]
func (s *Server) handleVoid(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.VoidRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	doc, err := s.workflowService.Void(r.Context(), identity, r.PathValue("id"), req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleRecordView godoc
// @Summary      Record view
// @Description  Mark the signer as having opened the document
// @Tags         Workflow
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string  true  "Document ID"
// @Param        signerId  path      string  true  "Signer ID"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      403  {object}  Envelope
// @Failure      409  {object}  Envelope  "INVALID_STATE"
// @Router       /documents/{id}/signers/{signerId}/view [post]
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	doc, err := s.workflowService.RecordView(r.Context(), identity, r.PathValue("id"), r.PathValue("signerId"), requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleSign godoc
// @Summary      Sign
// @Description  Submit values for the signer's fields. Every required field must have a value.
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string                          true  "Document ID"
// @Param        signerId  path      string                          true  "Signer ID"
// @Param        request   body      driving.SubmitSignatureRequest  true  "Field values keyed by field ID"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      400  {object}  Envelope  "MISSING_FIELDS or FIELD_VALIDATION"
// @Failure      409  {object}  Envelope  "INVALID_STATE or CONFLICT"
// @Router       /documents/{id}/signers/{signerId}/sign [post]
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.SubmitSignatureRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	doc, err := s.workflowService.SubmitSignature(r.Context(), identity, r.PathValue("id"), r.PathValue("signerId"), req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleDecline godoc
// @Summary      Decline
// @Description  Decline to sign. Required-all documents are voided.
// @Tags         Workflow
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string                  true   "Document ID"
// @Param        signerId  path      string                  true   "Signer ID"
// @Param        request   body      driving.DeclineRequest  false  "Reason"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      409  {object}  Envelope  "INVALID_STATE"
// @Router       /documents/{id}/signers/{signerId}/decline [post]
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.DeclineRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	doc, err := s.workflowService.Decline(r.Context(), identity, r.PathValue("id"), r.PathValue("signerId"), req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}
