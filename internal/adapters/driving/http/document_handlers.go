package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to temporary files
const multipartMemory = 32 << 20

// Document endpoints

// handleCreateDocument godoc
// @Summary      Create draft
// @Description  Upload one or more files and create a draft document owned by the caller
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title          formData  string  true   "Document title"
// @Param        subject        formData  string  false  "Email subject"
// @Param        message        formData  string  false  "Message to signers"
// @Param        config         formData  string  false  "JSON DocumentConfig"
// @Param        signers        formData  string  false  "JSON array of signers"
// @Param        files          formData  file    true   "Files to sign"
// @Success      201  {object}  Envelope{data=domain.Document}
// @Failure      400  {object}  Envelope  "FILE_VALIDATION or VALIDATION_ERROR"
// @Failure      401  {object}  Envelope  "MISSING_TOKEN or INVALID_TOKEN"
// @Failure      413  {object}  Envelope  "FILE_TOO_LARGE"
// @Router       /documents [post]
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := s.readUpload(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	doc, err := s.docService.CreateDraft(r.Context(), identity, *req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, doc)
}

// readUpload turns a multipart form into a CreateDraftRequest. Each file is
// read up to one byte past the ceiling so the service can report it as
// oversize together with any other violations.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*driving.CreateDraftRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes*int64(s.maxFiles)+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.NewValidationError(domain.CodeFileTooLarge, "upload exceeds the size limit", []domain.Violation{
				{Field: "files", Message: fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit)},
			})
		}
		return nil, domain.NewValidationError(domain.CodeValidation, "expected a multipart/form-data body", nil)
	}
	defer r.MultipartForm.RemoveAll()

	req := &driving.CreateDraftRequest{
		Title:   r.FormValue("title"),
		Subject: r.FormValue("subject"),
		Message: r.FormValue("message"),
	}

	var violations []domain.Violation
	raw := r.FormValue("config")
	if raw == "" {
		raw = r.FormValue("configuration")
	}
	if raw != "" {
		var cfg domain.DocumentConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			violations = append(violations, domain.Violation{Field: "config", Message: "must be a JSON object"})
		} else {
			req.Config = &cfg
		}
	}
	if raw = r.FormValue("signers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Signers); err != nil {
			violations = append(violations, domain.Violation{Field: "signers", Message: "must be a JSON array"})
		}
	}
	if len(violations) > 0 {
		return nil, domain.NewValidationError(domain.CodeValidation, "invalid form values", violations)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > s.maxFiles {
		return nil, domain.NewValidationError(domain.CodeFileValidation, "too many files", []domain.Violation{
			{Field: "files", Message: fmt.Sprintf("at most %d files per document", s.maxFiles)},
		})
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(io.LimitReader(f, s.maxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		req.Files = append(req.Files, driving.FileUpload{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  content,
		})
	}

	return req, nil
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  List the caller's documents, most recently updated first
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        page    query  int     false  "1-based page"
// @Param        limit   query  int     false  "Page size, at most 100"
// @Param        status  query  string  false  "draft, pending, completed or voided"
// @Param        scope   query  string  false  "owned (default), assigned or all"
// @Success      200  {object}  Envelope{data=driving.DocumentPage}
// @Failure      400  {object}  Envelope
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := driving.ListDocumentsRequest{
		Status: domain.DocumentStatus(q.Get("status")),
		Scope:  domain.DocumentScope(q.Get("scope")),
	}
	var violations []domain.Violation
	for name, dst := range map[string]*int{"page": &req.Page, "limit": &req.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			violations = append(violations, domain.Violation{Field: name, Message: "must be an integer"})
			continue
		}
		*dst = n
	}
	if len(violations) > 0 {
		writeServiceError(w, r, domain.NewValidationError(domain.CodeValidation, "invalid query parameters", violations))
		return
	}

	page, err := s.docService.List(r.Context(), identity, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, page)
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Get a document visible to the caller
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	doc, err := s.docService.Get(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleUpdateDocument godoc
// @Summary      Update draft
// @Description  Edit a draft's metadata, signers and fields
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Document ID"
// @Param        request  body      driving.UpdateDraftRequest  true  "Changes"
// @Success      200  {object}  Envelope{data=domain.Document}
// @Failure      400  {object}  Envelope
// @Failure      409  {object}  Envelope  "INVALID_STATE or CONFLICT"
// @Router       /documents/{id} [put]
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req driving.UpdateDraftRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	doc, err := s.docService.UpdateDraft(r.Context(), identity, r.PathValue("id"), req, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete document
// @Description  Delete a draft or voided document with its files and audit trail
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  Envelope{data=StatusResponse}
// @Failure      409  {object}  Envelope  "INVALID_STATE"
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	if err := s.docService.Delete(r.Context(), identity, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, StatusResponse{Status: "deleted"})
}

// handleGetFileContent godoc
// @Summary      Download file
// @Description  Stream a file's content after the same access check as reading the document
// @Tags         Documents
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        id      path  string  true  "Document ID"
// @Param        fileId  path  string  true  "File ID"
// @Success      200
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /documents/{id}/files/{fileId} [get]
func (s *Server) handleGetFileContent(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	content, err := s.docService.FileContent(r.Context(), identity, r.PathValue("id"), r.PathValue("fileId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": content.Name}))
	if content.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, content.Body)
}

// handleListAudit godoc
// @Summary      Audit trail
// @Description  List a document's audit events in commit order
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  Envelope{data=[]domain.AuditEvent}
// @Failure      403  {object}  Envelope
// @Router       /documents/{id}/audit [get]
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	events, err := s.auditService.List(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, events)
}

// permissionOps are reported by handlePermissions, in this order
var permissionOps = []domain.Operation{
	domain.OpEdit, domain.OpSend, domain.OpVoid, domain.OpDelete,
	domain.OpRecordView, domain.OpSign, domain.OpDecline,
}

// handlePermissions godoc
// @Summary      Caller permissions
// @Description  List the operations the caller may perform on a document. Whether the document's state allows them is checked when they are attempted.
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  Envelope{data=PermissionsResponse}
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /documents/{id}/permissions [get]
func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := s.accessGate.Authorize(r.Context(), id, identity, domain.OpView); err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := PermissionsResponse{DocumentID: id, Allowed: []domain.Operation{domain.OpView}}
	for _, op := range permissionOps {
		err := s.accessGate.Authorize(r.Context(), id, identity, op)
		switch {
		case err == nil:
			resp.Allowed = append(resp.Allowed, op)
		case !errors.Is(err, domain.ErrForbidden):
			writeServiceError(w, r, err)
			return
		}
	}
	writeData(w, http.StatusOK, resp)
}
