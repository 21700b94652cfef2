package trakt

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetDeviceCode(t *testing.T) {
	var receivedBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/code" {
			t.Errorf("expected path /oauth/device/code, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("trakt-api-version") != "2" {
			t.Errorf("expected trakt-api-version 2, got %s", r.Header.Get("trakt-api-version"))
		}
		if r.Header.Get("trakt-api-key") != "test-client-id" {
			t.Errorf("expected trakt-api-key header")
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no Authorization header, got %s", r.Header.Get("Authorization"))
		}

		json.NewDecoder(r.Body).Decode(&receivedBody)

		json.NewEncoder(w).Encode(DeviceCodeResponse{
			DeviceCode:      "device-123",
			UserCode:        "ABCD1234",
			VerificationURL: "https://trakt.tv/activate",
			ExpiresIn:       600,
			Interval:        5,
		})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	code, err := client.GetDeviceCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedBody["client_id"] != "test-client-id" {
		t.Errorf("expected client_id in request body, got %v", receivedBody)
	}
	if code.DeviceCode != "device-123" {
		t.Errorf("expected device code device-123, got %s", code.DeviceCode)
	}
	if code.UserCode != "ABCD1234" {
		t.Errorf("expected user code ABCD1234, got %s", code.UserCode)
	}
	if code.VerificationURL != "https://trakt.tv/activate" {
		t.Errorf("expected verification URL, got %s", code.VerificationURL)
	}
}

func TestPollForTokenSuccess(t *testing.T) {
	var receivedBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/device/token" {
			t.Errorf("expected path /oauth/device/token, got %s", r.URL.Path)
		}

		json.NewDecoder(r.Body).Decode(&receivedBody)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			TokenType:    "bearer",
		})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	token, err := client.PollForToken("device-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedBody["code"] != "device-123" {
		t.Errorf("expected device code in request body, got %v", receivedBody)
	}
	if receivedBody["client_id"] != "test-client-id" {
		t.Errorf("expected client_id in request body, got %v", receivedBody)
	}
	if receivedBody["client_secret"] != "test-secret" {
		t.Errorf("expected client_secret in request body, got %v", receivedBody)
	}
	if token.AccessToken != "access-token" {
		t.Errorf("expected access token, got %s", token.AccessToken)
	}
	if token.RefreshToken != "refresh-token" {
		t.Errorf("expected refresh token, got %s", token.RefreshToken)
	}
}

func TestPollForTokenPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	_, err := client.PollForToken("device-123")
	if !errors.Is(err, ErrAuthorizationPending) {
		t.Fatalf("expected ErrAuthorizationPending, got %v", err)
	}
}

func TestPollForTokenDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	_, err := client.PollForToken("device-123")
	var denied *AuthorizationDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AuthorizationDeniedError, got %v", err)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	var receivedBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("expected path /oauth/token, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		json.NewDecoder(r.Body).Decode(&receivedBody)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
		})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	token, err := client.RefreshAccessToken("old-refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedBody["refresh_token"] != "old-refresh" {
		t.Errorf("expected refresh_token in request body, got %v", receivedBody)
	}
	if receivedBody["grant_type"] != "refresh_token" {
		t.Errorf("expected grant_type refresh_token, got %v", receivedBody)
	}
	if receivedBody["redirect_uri"] != "urn:ietf:wg:oauth:2.0:oob" {
		t.Errorf("expected oob redirect_uri, got %v", receivedBody)
	}
	if token.AccessToken != "new-access" {
		t.Errorf("expected new access token, got %s", token.AccessToken)
	}
	if token.RefreshToken != "new-refresh" {
		t.Errorf("expected new refresh token, got %s", token.RefreshToken)
	}
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	_, err := client.RefreshAccessToken("stale-refresh")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Op != "token refresh" {
		t.Errorf("expected op 'token refresh', got %s", remoteErr.Op)
	}
}

func TestSearchMovieByIMDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/imdb/tt0133093" {
			t.Errorf("expected path /search/imdb/tt0133093, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "movie" {
			t.Errorf("expected type=movie, got %s", r.URL.Query().Get("type"))
		}

		json.NewEncoder(w).Encode([]searchResult{{
			Type: "movie",
			Movie: &Movie{
				Title: "The Matrix",
				Year:  1999,
				IDs:   IDs{Trakt: 481, Slug: "the-matrix-1999", IMDB: "tt0133093", TMDB: 603},
			},
		}})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	movie, err := client.SearchMovieByIMDB("tt0133093")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if movie.Title != "The Matrix" {
		t.Errorf("expected The Matrix, got %s", movie.Title)
	}
	if movie.IDs.Trakt != 481 {
		t.Errorf("expected trakt id 481, got %d", movie.IDs.Trakt)
	}
}

func TestSearchMovieByIMDBNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	_, err := client.SearchMovieByIMDB("tt9999999")
	if err == nil {
		t.Fatal("expected error for empty search result")
	}
}

func TestSearchShowByTVDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tvdb/81189" {
			t.Errorf("expected path /search/tvdb/81189, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("type") != "show" {
			t.Errorf("expected type=show, got %s", r.URL.Query().Get("type"))
		}

		json.NewEncoder(w).Encode([]searchResult{{
			Type: "show",
			Show: &Show{
				Title: "Breaking Bad",
				Year:  2008,
				IDs:   IDs{Trakt: 1388, Slug: "breaking-bad", TVDB: 81189},
			},
		}})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	show, err := client.SearchShowByTVDB(81189)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if show.IDs.Slug != "breaking-bad" {
		t.Errorf("expected slug breaking-bad, got %s", show.IDs.Slug)
	}
}

func TestGetEpisode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shows/breaking-bad/seasons/2/episodes/5" {
			t.Errorf("expected episode path, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(Episode{
			Season: 2,
			Number: 5,
			Title:  "Breakage",
			IDs:    IDs{Trakt: 73650, TVDB: 438917, IMDB: "tt1232249", TMDB: 62097},
		})
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	episode, err := client.GetEpisode("breaking-bad", 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if episode.IDs.Trakt != 73650 {
		t.Errorf("expected trakt id 73650, got %d", episode.IDs.Trakt)
	}
	if episode.IDs.TVDB != 438917 {
		t.Errorf("expected tvdb id 438917, got %d", episode.IDs.TVDB)
	}
}

func TestAddToHistory(t *testing.T) {
	var receivedBody HistoryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/history" {
			t.Errorf("expected path /sync/history, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected Authorization header, got %s", r.Header.Get("Authorization"))
		}

		json.NewDecoder(r.Body).Decode(&receivedBody)

		w.WriteHeader(http.StatusCreated)
		resp := HistoryResponse{}
		resp.Added.Movies = 1
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	resp, err := client.AddToHistory("test-token", HistoryRequest{
		Movies: []MovieEntry{{
			WatchedAt: "2024-05-04T10:30:15.000Z",
			Title:     "The Matrix",
			Year:      1999,
			IDs:       MovieIDs{Trakt: 481, Slug: "the-matrix-1999", IMDB: "tt0133093", TMDB: 603},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Added.Movies != 1 {
		t.Errorf("expected 1 added movie, got %d", resp.Added.Movies)
	}
	if len(receivedBody.Movies) != 1 {
		t.Fatalf("expected 1 movie in request body, got %d", len(receivedBody.Movies))
	}
	if receivedBody.Movies[0].IDs.Trakt != 481 {
		t.Errorf("expected trakt id 481 in request body, got %d", receivedBody.Movies[0].IDs.Trakt)
	}
}

func TestAddToHistoryNonCreatedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 is not success for history submission, only 201 is.
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("test-client-id", "test-secret", WithBaseURL(server.URL))

	_, err := client.AddToHistory("test-token", HistoryRequest{})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Op != "sync history" {
		t.Errorf("expected op 'sync history', got %s", remoteErr.Op)
	}
}
