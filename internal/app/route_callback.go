package app

import (
	"net/http"

	"github.com/hashicorp/cap/oidc"
	"github.com/hashicorp/cap/oidc/callback"

	"github.com/l9g/oidc-info/internal/websession"
)

func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	if a.callback == nil {
		a.writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "no provider configured")
		return
	}
	a.callback(w, r)
}

// loginSucceeded implements callback.SuccessResponseFunc.
func (a *App) loginSucceeded(state string, t oidc.Token, w http.ResponseWriter, r *http.Request) {
	a.requests.Delete(state)
	a.completeLogin(w, r, websession.Tokens{
		IDToken:      string(t.IDToken()),
		AccessToken:  string(t.AccessToken()),
		RefreshToken: string(t.RefreshToken()),
		Expiry:       t.Expiry(),
	})
}

// completeLogin starts a fresh local session for the tokens, binds it to the
// provider session and subject from the ID token and redirects to the info
// page.
func (a *App) completeLogin(w http.ResponseWriter, r *http.Request, tokens websession.Tokens) {
	if prev, ok := a.sessions.FromRequest(r); ok {
		_ = prev.Invalidate()
	}
	s, err := a.sessions.Create()
	if err != nil {
		a.logger.Error("unable to create session", "error", err)
		a.metrics.logins.WithLabelValues("failure").Inc()
		a.writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	claims := a.tokens.Decode(tokens.IDToken)
	sid, sub := claims["sid"], claims["sub"]
	s.SetLogin(sid, sub, tokens)
	switch {
	case sid != "":
		err = a.registry.OnLoginSuccess(sid, sub, s)
	case sub != "":
		a.logger.Warn("id token has no sid claim, only subject logouts will reach this session", "sub", sub, "local_id", s.ID())
		err = a.registry.OnSubjectLogin(sub, s)
	default:
		a.logger.Warn("id token has neither sid nor sub claim, back-channel logout will not reach this session", "local_id", s.ID())
	}
	if err != nil {
		a.logger.Error("unable to bind session", "sid", sid, "local_id", s.ID(), "error", err)
		_ = s.Invalidate()
		a.metrics.logins.WithLabelValues("failure").Inc()
		a.writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	a.logger.Debug("login succeeded", "sid", sid, "sub", sub, "local_id", s.ID())
	a.metrics.logins.WithLabelValues("success").Inc()
	a.sessions.WriteCookie(w, s)
	http.Redirect(w, r, "/app", http.StatusSeeOther)
}

// loginFailed implements callback.ErrorResponseFunc. Whatever went wrong, the
// current local session is ended and the user starts over at /.
func (a *App) loginFailed(state string, respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, r *http.Request) {
	a.requests.Delete(state)
	switch {
	case respErr != nil:
		a.logger.Warn("provider rejected login", "path", r.URL.Path, "error", respErr.Error, "description", respErr.Description)
	case e != nil:
		a.logger.Warn("login failed", "path", r.URL.Path, "error", e)
	default:
		a.logger.Warn("login failed for an unknown reason", "path", r.URL.Path)
	}
	a.metrics.logins.WithLabelValues("failure").Inc()

	if s, ok := a.sessions.FromRequest(r); ok {
		_ = a.sessions.Logout(w, s)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
