package config

import (
	"strconv"
	"strings"
)

// Settings is the full contents of the settings file. The [plex] section is
// operator-managed; in [trakt] the client credentials are operator-managed
// while the tokens are written by the tool after authentication and refresh.
type Settings struct {
	Plex  PlexSettings  `toml:"plex"`
	Trakt TraktSettings `toml:"trakt"`
}

// PlexSettings holds the per-user sync allow-list.
type PlexSettings struct {
	UserIDs string `toml:"user_ids"`
}

// TraktSettings holds the Trakt application credentials and OAuth tokens.
type TraktSettings struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AccessToken  string `toml:"access_token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
}

// SyncAllowed reports whether events for the given user id should be synced.
// A missing user_ids key is a setup error, not an empty allow-list.
func (s *Settings) SyncAllowed(userID int) (bool, error) {
	if strings.TrimSpace(s.Plex.UserIDs) == "" {
		return false, &IncompleteError{Field: "user_ids"}
	}

	want := strconv.Itoa(userID)
	for _, id := range strings.Split(s.Plex.UserIDs, ",") {
		if strings.TrimSpace(id) == want {
			return true, nil
		}
	}
	return false, nil
}

// RequireClientID returns the configured client id or an IncompleteError.
func (t *TraktSettings) RequireClientID() (string, error) {
	return require("client_id", t.ClientID)
}

// RequireClientSecret returns the configured client secret or an IncompleteError.
func (t *TraktSettings) RequireClientSecret() (string, error) {
	return require("client_secret", t.ClientSecret)
}

// RequireAccessToken returns the stored access token or an IncompleteError.
func (t *TraktSettings) RequireAccessToken() (string, error) {
	return require("access_token", t.AccessToken)
}

// RequireRefreshToken returns the stored refresh token or an IncompleteError.
func (t *TraktSettings) RequireRefreshToken() (string, error) {
	return require("refresh_token", t.RefreshToken)
}

// SetTokens overwrites both OAuth tokens. They are always updated as a pair so
// the stored access token can never outlive its matching refresh token.
func (t *TraktSettings) SetTokens(accessToken, refreshToken string) {
	t.AccessToken = accessToken
	t.RefreshToken = refreshToken
}

func require(field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", &IncompleteError{Field: field}
	}
	return value, nil
}
