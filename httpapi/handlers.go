package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/casecurate/caseauth"
	"github.com/casecurate/caseauth/session"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	UserID      string `json:"id"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type userResponse struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Roles       []caseauth.Role `json:"roles"`
	DisplayName string          `json:"displayName,omitempty"`
	PictureURL  string          `json:"pictureUrl,omitempty"`
	Newsletter  bool            `json:"newsletter"`
	AuthMethod  string          `json:"authMethod,omitempty"`
}

func toUserResponse(u *caseauth.User, method caseauth.AuthMethod) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []caseauth.Role{}
	}
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Roles:       roles,
		DisplayName: u.Profile.DisplayName,
		PictureURL:  u.Profile.PictureURL,
		Newsletter:  u.Profile.Newsletter,
		AuthMethod:  string(method),
	}
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return caseauth.ErrValidation
	}
	return nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.engine.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.sessions.Issue(w, session.Principal{UserID: user.ID}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, caseauth.MethodSession))
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.engine.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.sessions.Issue(w, session.Principal{UserID: user.ID}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, caseauth.MethodSession))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := caseauth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, caseauth.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(principal.User, principal.Method))
}

func (s *Server) handleAPIKeyGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := caseauth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, caseauth.ErrUnauthorized)
		return
	}
	key, err := s.engine.APIKeyFor(r.Context(), principal.User.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}

func (s *Server) handleAPIKeyGenerate(w http.ResponseWriter, r *http.Request) {
	principal, ok := caseauth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, caseauth.ErrUnauthorized)
		return
	}
	key, err := s.engine.GenerateAPIKey(r.Context(), principal.User.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"apiKey": key})
}

func (s *Server) handleAPIKeyDelete(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if err := s.engine.DeleteAPIKey(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := caseauth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, caseauth.ErrUnauthorized)
		return
	}
	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.ChangePassword(r.Context(), principal.User.ID, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// handleRequestReset always answers 200 with the same body for known and
// unknown addresses; only lockout, rate limiting and hard failures break
// the uniform answer.
func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.RequestPasswordResetByEmail(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "if that account exists, a reset link has been sent",
	})
}

func (s *Server) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), req.UserID, req.Token, req.NewPassword); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}
