package http

import (
	"net/http"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the document store, lock backend and notification queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness == nil {
		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
		return
	}

	failed := s.readiness.Ready(r.Context())
	if len(failed) == 0 {
		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
		return
	}

	resp := ReadyResponse{Status: "unavailable", Failed: make(map[string]string, len(failed))}
	for name, err := range failed {
		resp.Failed[name] = err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwagger serves the registered OpenAPI document
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, domain.CodeNotFound, "api documentation is not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Auth endpoints

// handleRegister godoc
// @Summary      Register
// @Description  Create an account and sign it in
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RegisterRequest  true  "Account details"
// @Success      201      {object}  Envelope{data=domain.LoginResponse}
// @Failure      400      {object}  Envelope  "Invalid input"
// @Failure      409      {object}  Envelope  "Email already registered"
// @Router       /auth/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	resp, err := s.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, resp)
}

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  Envelope{data=domain.LoginResponse}
// @Failure      400      {object}  Envelope  "Invalid request body"
// @Failure      401      {object}  Envelope  "Invalid credentials or account disabled"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Exchange a refresh token for a new JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  Envelope{data=domain.LoginResponse}
// @Failure      400      {object}  Envelope  "Invalid request body"
// @Failure      401      {object}  Envelope  "Invalid refresh token"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=StatusResponse}
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.Logout(r.Context(), extractBearerToken(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleLogoutAll godoc
// @Summary      Logout everywhere
// @Description  Invalidate every session of the current user
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=StatusResponse}
// @Failure      401  {object}  Envelope  "Unauthorized"
// @Router       /auth/logout-all [post]
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.authService.LogoutAll(r.Context(), identity.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleGetMe godoc
// @Summary      Get current user
// @Description  Get the currently authenticated user's profile
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=domain.UserSummary}
// @Failure      401  {object}  Envelope  "Unauthorized"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	user, err := s.authService.Me(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, user)
}
