package trakt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"

	// Out-of-band redirect marker required by Trakt for the refresh grant of
	// device-authorized applications.
	oobRedirectURI = "urn:ietf:wg:oauth:2.0:oob"
)

// ErrAuthorizationPending is returned by PollForToken while the operator has
// not yet approved the device code. It is the only retryable poll outcome.
var ErrAuthorizationPending = errors.New("device authorization pending")

// AuthorizationDeniedError is a non-pending failure during device-token
// polling. It terminates the authentication flow.
type AuthorizationDeniedError struct {
	Status string
	Body   string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("trakt device authorization denied: %s - %s", e.Status, e.Body)
}

// RemoteError is a Trakt API response with an unexpected status code.
type RemoteError struct {
	Op     string
	Status string
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("trakt %s failed: %s - %s", e.Op, e.Status, e.Body)
}

// Client handles Trakt API interactions for OAuth and metadata/history calls.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// NewClient creates a new Trakt API client.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeviceCodeResponse represents the response from /oauth/device/code.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse represents a token grant from /oauth/device/token or /oauth/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// IDs holds the cross-service identifiers of a media item.
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a Trakt movie.
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show represents a Trakt TV show.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Episode represents a Trakt episode.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

type searchResult struct {
	Type  string `json:"type"`
	Movie *Movie `json:"movie,omitempty"`
	Show  *Show  `json:"show,omitempty"`
}

// setHeaders adds the required Trakt API headers to a request.
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// GetDeviceCode initiates the device code OAuth flow.
func (c *Client) GetDeviceCode() (*DeviceCodeResponse, error) {
	payload := map[string]string{
		"client_id": c.clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/oauth/device/code", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &RemoteError{Op: "device code", Status: resp.Status, Body: string(respBody)}
	}

	var deviceCode DeviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&deviceCode); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &deviceCode, nil
}

// PollForToken polls for the OAuth token after the operator has been shown the
// device code. While the code is unapproved Trakt answers 400 and
// ErrAuthorizationPending is returned; any other non-success status is an
// AuthorizationDeniedError.
func (c *Client) PollForToken(deviceCode string) (*TokenResponse, error) {
	payload := map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/oauth/device/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var token TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &token, nil
	case http.StatusBadRequest:
		// The operator has not approved the code yet.
		return nil, ErrAuthorizationPending
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &AuthorizationDeniedError{Status: resp.Status, Body: string(respBody)}
	}
}

// RefreshAccessToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshAccessToken(refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  oobRedirectURI,
		"grant_type":    "refresh_token",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &RemoteError{Op: "token refresh", Status: resp.Status, Body: string(respBody)}
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &token, nil
}

// SearchMovieByIMDB resolves a movie's canonical Trakt identity from its IMDB id.
func (c *Client) SearchMovieByIMDB(imdbID string) (*Movie, error) {
	results, err := c.search("imdb/"+url.PathEscape(imdbID), "movie")
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if result.Movie != nil {
			return result.Movie, nil
		}
	}
	return nil, fmt.Errorf("no movie found for imdb id %s", imdbID)
}

// SearchShowByTVDB resolves a show's canonical Trakt identity from its TVDB id.
func (c *Client) SearchShowByTVDB(tvdbID int) (*Show, error) {
	results, err := c.search("tvdb/"+strconv.Itoa(tvdbID), "show")
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if result.Show != nil {
			return result.Show, nil
		}
	}
	return nil, fmt.Errorf("no show found for tvdb id %d", tvdbID)
}

func (c *Client) search(idLookup, mediaType string) ([]searchResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/search/"+idLookup+"?type="+mediaType, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &RemoteError{Op: "search", Status: resp.Status, Body: string(respBody)}
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return results, nil
}

// GetEpisode fetches a single episode of a show by season and episode number.
func (c *Client) GetEpisode(showSlug string, season, episode int) (*Episode, error) {
	endpoint := fmt.Sprintf("%s/shows/%s/seasons/%d/episodes/%d", c.baseURL, url.PathEscape(showSlug), season, episode)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &RemoteError{Op: "episode lookup", Status: resp.Status, Body: string(respBody)}
	}

	var ep Episode
	if err := json.NewDecoder(resp.Body).Decode(&ep); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &ep, nil
}

// HistoryRequest represents the request body for /sync/history. Exactly one
// of Movies or Episodes is populated per invocation.
type HistoryRequest struct {
	Movies   []MovieEntry   `json:"movies,omitempty"`
	Episodes []EpisodeEntry `json:"episodes,omitempty"`
}

// MovieEntry is a single watched-movie record.
type MovieEntry struct {
	WatchedAt string   `json:"watched_at"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	IDs       MovieIDs `json:"ids"`
}

// MovieIDs holds the ids submitted with a watched-movie record.
type MovieIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
	TMDB  int    `json:"tmdb"`
}

// EpisodeEntry is a single watched-episode record. Episodes are submitted by
// ids only, without title or year.
type EpisodeEntry struct {
	WatchedAt string     `json:"watched_at"`
	IDs       EpisodeIDs `json:"ids"`
}

// EpisodeIDs holds the ids submitted with a watched-episode record.
type EpisodeIDs struct {
	Trakt int    `json:"trakt"`
	TVDB  int    `json:"tvdb"`
	IMDB  string `json:"imdb"`
	TMDB  int    `json:"tmdb"`
}

// HistoryResponse represents the response from /sync/history.
type HistoryResponse struct {
	Added struct {
		Movies   int `json:"movies"`
		Episodes int `json:"episodes"`
	} `json:"added"`
	NotFound struct {
		Movies   []MovieEntry   `json:"movies"`
		Episodes []EpisodeEntry `json:"episodes"`
	} `json:"not_found"`
}

// AddToHistory submits one watched-history record. Trakt answers 201 on
// success; anything else is surfaced as a RemoteError and nothing is retried.
func (c *Client) AddToHistory(accessToken string, request HistoryRequest) (*HistoryResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/sync/history", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &RemoteError{Op: "sync history", Status: resp.Status, Body: string(respBody)}
	}

	var histResp HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&histResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &histResp, nil
}
