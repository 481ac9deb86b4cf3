package app

import (
	"net/http"
	"net/url"
	"strconv"
)

// logout ends the local session. With provider=true and a known end session
// endpoint the user is sent on to the provider to end the provider session
// as well.
func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessions.FromRequest(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	idToken := s.Tokens().IDToken
	if err := a.sessions.Logout(w, s); err != nil {
		a.logger.Debug("session already ended", "local_id", s.ID(), "error", err)
	}

	provider, _ := strconv.ParseBool(r.FormValue("provider"))
	if !provider || a.endSession == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	u, err := url.Parse(a.endSession)
	if err != nil {
		a.logger.Error("invalid end session endpoint", "endpoint", a.endSession, "error", err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	q := u.Query()
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if a.clientID != "" {
		q.Set("client_id", a.clientID)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
