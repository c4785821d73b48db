package http

import (
	"net/http"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// SetFieldsRequest replaces the fields placed on one file
type SetFieldsRequest struct {
	Fields []driving.FieldInput `json:"fields"`
}

// Field endpoints

// handleSetFields godoc
// @Summary      Place fields
// @Description  Replace every field on one file of a draft. All violations are reported together.
// @Tags         Fields
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string            true  "Document ID"
// @Param        fileId   path      string            true  "File ID"
// @Param        request  body      SetFieldsRequest  true  "Fields"
// @Success      200  {object}  Envelope{data=domain.File}
// @Failure      400  {object}  Envelope  "FIELD_VALIDATION"
// @Failure      409  {object}  Envelope  "INVALID_STATE"
// @Router       /documents/{id}/files/{fileId}/fields [put]
func (s *Server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req SetFieldsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	file, err := s.fieldService.SetFields(r.Context(), identity, r.PathValue("id"), r.PathValue("fileId"), req.Fields, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, file)
}

// handleInstantiateTemplate godoc
// @Summary      Apply template
// @Description  Place a template's fields on one file, mapping each slot to a signer
// @Tags         Fields
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Document ID"
// @Param        fileId   path      string                              true  "File ID"
// @Param        request  body      driving.InstantiateTemplateRequest  true  "Template and slot assignments"
// @Success      200  {object}  Envelope{data=[]domain.Field}
// @Failure      400  {object}  Envelope  "FIELD_VALIDATION"
// @Router       /documents/{id}/files/{fileId}/template [post]
func (s *Server) handleInstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.InstantiateTemplateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	fields, err := s.fieldService.InstantiateTemplate(r.Context(), identity, r.PathValue("id"), r.PathValue("fileId"), req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, fields)
}

// handleSignerFields godoc
// @Summary      Signer fields
// @Description  List the fields assigned to one signer across every file
// @Tags         Fields
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      string  true  "Document ID"
// @Param        signerId  path      string  true  "Signer ID"
// @Success      200  {object}  Envelope{data=[]domain.AssignedField}
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /documents/{id}/signers/{signerId}/fields [get]
func (s *Server) handleSignerFields(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	fields, err := s.fieldService.SignerFields(r.Context(), identity, r.PathValue("id"), r.PathValue("signerId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, fields)
}

// Template endpoints

// handleCreateTemplate godoc
// @Summary      Create template
// @Description  Save a reusable field layout with named signer slots
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateTemplateRequest  true  "Template"
// @Success      201  {object}  Envelope{data=domain.Template}
// @Failure      400  {object}  Envelope  "FIELD_VALIDATION or VALIDATION_ERROR"
// @Router       /templates [post]
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.CreateTemplateRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	tmpl, err := s.fieldService.CreateTemplate(r.Context(), identity, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, tmpl)
}

// handleListTemplates godoc
// @Summary      List templates
// @Tags         Templates
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]domain.Template}
// @Router       /templates [get]
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	templates, err := s.fieldService.ListTemplates(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, templates)
}

// handleGetTemplate godoc
// @Summary      Get template
// @Tags         Templates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  Envelope{data=domain.Template}
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /templates/{id} [get]
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	tmpl, err := s.fieldService.GetTemplate(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, tmpl)
}

// handleDeleteTemplate godoc
// @Summary      Delete template
// @Tags         Templates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  Envelope{data=StatusResponse}
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /templates/{id} [delete]
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	if err := s.fieldService.DeleteTemplate(r.Context(), identity, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, StatusResponse{Status: "deleted"})
}
