package app

import (
	"net/http"
	"runtime"
	"strconv"

	"golang.org/x/text/language"
)

type infoPage struct {
	ClientID           string            `json:"client_id"`
	EndSessionEndpoint string            `json:"end_session_endpoint,omitempty"`
	Locale             string            `json:"locale"`
	ProviderSessionID  string            `json:"sid,omitempty"`
	Subject            string            `json:"sub,omitempty"`
	IDToken            map[string]string `json:"id_token"`
	AccessToken        map[string]string `json:"access_token"`
	RefreshToken       map[string]string `json:"refresh_token,omitempty"`
	Build              BuildInfo         `json:"build,omitempty"`
	Runtime            map[string]string `json:"runtime"`
}

func (a *App) info(w http.ResponseWriter, r *http.Request) {
	s, ok := a.sessions.FromRequest(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	tokens := s.Tokens()
	page := infoPage{
		ClientID:           a.clientID,
		EndSessionEndpoint: a.endSession,
		Locale:             a.locale(r),
		ProviderSessionID:  s.ProviderSessionID(),
		Subject:            s.Subject(),
		IDToken:            a.tokens.Decode(tokens.IDToken),
		AccessToken:        a.tokens.Decode(tokens.AccessToken),
		Build:              a.build,
		Runtime:            runtimeProperties(),
	}
	if tokens.RefreshToken != "" {
		page.RefreshToken = a.tokens.Decode(tokens.RefreshToken)
	}
	a.logger.Debug("info page", "local_id", s.ID(), "locale", page.Locale)
	a.writeJSON(w, http.StatusOK, page)
}

// locale picks the supported locale which best matches the request's
// Accept-Language header.
func (a *App) locale(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return supportedLocales[0].String()
	}
	_, i, _ := a.locales.Match(tags...)
	return supportedLocales[i].String()
}

func runtimeProperties() map[string]string {
	return map[string]string{
		"go.version": runtime.Version(),
		"os.name":    runtime.GOOS,
		"os.arch":    runtime.GOARCH,
		"num_cpu":    strconv.Itoa(runtime.NumCPU()),
		"gomaxprocs": strconv.Itoa(runtime.GOMAXPROCS(0)),
	}
}
