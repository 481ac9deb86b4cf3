package app

import (
	"net/http"

	"github.com/hashicorp/cap/oidc"
)

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if a.provider == nil {
		a.writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "no provider configured")
		return
	}
	oidcRequest, err := oidc.NewRequest(a.attemptTimeout, a.redirectURL, oidc.WithNow(a.clock.Now))
	if err != nil {
		a.logger.Error("unable to create login request", "error", err)
		a.writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	a.requests.Add(oidcRequest)

	authURL, err := a.provider.AuthURL(r.Context(), oidcRequest)
	if err != nil {
		a.requests.Delete(oidcRequest.State())
		a.logger.Error("unable to get auth url", "error", err)
		a.writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}
