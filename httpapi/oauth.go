package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/casecurate/caseauth"
	"github.com/casecurate/caseauth/session"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// handleGoogleStart redirects to the provider's consent screen. The
// newsletter checkbox travels inside the signed state parameter, so
// concurrent logins cannot see each other's choice.
func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	newsletter := r.URL.Query().Get("newsletter") == "true"
	state, err := s.engine.EncodeOAuthState(newsletter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleGoogleRedirect completes the code exchange, links or provisions
// the account and issues a session cookie.
func (s *Server) handleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	newsletter, err := s.engine.DecodeOAuthState(r.URL.Query().Get("state"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, caseauth.ErrValidation)
		return
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: code exchange: %v", caseauth.ErrUpstream, err))
		return
	}

	profile, err := s.fetchGoogleProfile(ctx, token)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.engine.OAuthLogin(ctx, profile, newsletter)
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

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *Server) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (caseauth.FederatedProfile, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return caseauth.FederatedProfile{}, fmt.Errorf("%w: userinfo: %v", caseauth.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return caseauth.FederatedProfile{}, fmt.Errorf("%w: userinfo status %d", caseauth.ErrUpstream, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return caseauth.FederatedProfile{}, fmt.Errorf("%w: decode userinfo: %v", caseauth.ErrUpstream, err)
	}

	profile := caseauth.FederatedProfile{
		Subject:     info.ID,
		DisplayName: info.Name,
	}
	if info.Email != "" {
		profile.Emails = []string{info.Email}
	}
	if info.Picture != "" {
		profile.Photos = []string{info.Picture}
	}
	return profile, nil
}
