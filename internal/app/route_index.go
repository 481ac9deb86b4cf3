package app

import "net/http"

type indexPage struct {
	Authenticated bool   `json:"authenticated"`
	Login         string `json:"login,omitempty"`
	App           string `json:"app,omitempty"`
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.sessions.FromRequest(r); ok {
		a.writeJSON(w, http.StatusOK, indexPage{Authenticated: true, App: "/app"})
		return
	}
	a.writeJSON(w, http.StatusOK, indexPage{Login: "/login"})
}
