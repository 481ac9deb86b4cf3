package app

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	backchannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"
	maxLogoutTokenBytes    = 64 << 10
)

// backchannelLogout receives the provider's logout token and invalidates the
// local sessions it names. Unknown sessions are not an error, so replayed or
// late notifications are answered with 200 as well.
func (a *App) backchannelLogout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	token, err := logoutToken(w, r)
	if err != nil || token == "" {
		a.logger.Debug("back-channel logout without token", "error", err)
		a.metrics.backchannel.WithLabelValues("invalid_request").Inc()
		a.writeError(w, http.StatusBadRequest, "invalid_request", "missing logout_token")
		return
	}

	claims, err := a.logoutDecoder.DecodeClaims(r.Context(), token)
	if err == nil && a.strictLogoutTokens {
		err = validateLogoutToken(claims)
	}
	if err != nil {
		a.logger.Warn("rejected logout token", "error", err)
		a.metrics.backchannel.WithLabelValues("invalid_token").Inc()
		a.writeError(w, http.StatusBadRequest, "invalid_request", "invalid logout_token")
		return
	}
	a.logger.Debug("back-channel logout", "sid", claims["sid"], "sub", claims["sub"])

	if err := a.registry.OnBackchannelLogout(claims); err != nil {
		a.logger.Error("back-channel logout failed", "sid", claims["sid"], "sub", claims["sub"], "error", err)
		a.metrics.backchannel.WithLabelValues("failed").Inc()
		a.writeError(w, http.StatusBadRequest, "logout_failed", "")
		return
	}
	a.metrics.backchannel.WithLabelValues("ok").Inc()
	w.WriteHeader(http.StatusOK)
}

// logoutToken reads the token from the logout_token form parameter. A body
// which is not form encoded is taken as the raw token.
func logoutToken(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoutTokenBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return "", err
		}
		return strings.TrimSpace(r.PostForm.Get("logout_token")), nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, "logout_token=") {
		v, err := url.ParseQuery(raw)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(v.Get("logout_token")), nil
	}
	return raw, nil
}

// validateLogoutToken checks the logout token specific claims: an events
// claim with the back-channel logout event, no nonce and at least one of sid
// or sub.
func validateLogoutToken(claims map[string]string) error {
	if claims["sid"] == "" && claims["sub"] == "" {
		return fmt.Errorf("neither sid nor sub claim: %w", ErrInvalidLogoutToken)
	}
	if _, ok := claims["nonce"]; ok {
		return fmt.Errorf("nonce claim present: %w", ErrInvalidLogoutToken)
	}
	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(claims["events"]), &events); err != nil {
		return fmt.Errorf("events claim: %w", ErrInvalidLogoutToken)
	}
	if _, ok := events[backchannelLogoutEvent]; !ok {
		return fmt.Errorf("events claim lacks %s: %w", backchannelLogoutEvent, ErrInvalidLogoutToken)
	}
	return nil
}
