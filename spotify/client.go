package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	accountsURL = "https://accounts.spotify.com/api/token"
	apiBaseURL  = "https://api.spotify.com/v1"

	// Tokens last an hour; refresh a little early.
	tokenSlack = 30 * time.Second
)

// Track is one search result offered to players during song submission.
type Track struct {
	SpotifyID  string  `json:"spotify_id"`
	Name       string  `json:"song_name"`
	ArtistName string  `json:"artist_name"`
	ImageURL   *string `json:"image_url,omitempty"`
	DurationMs int     `json:"duration_ms"`
}

// Client talks to the Spotify Web API. Search runs on an app token from the
// client-credentials grant; playback control needs the host account's
// refresh token and is disabled when none is configured.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string
	httpClient   *http.Client

	mu            sync.Mutex
	appToken      string
	appExpiry     time.Time
	userToken     string
	userExpiry    time.Time
}

func New(clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CanControlPlayback reports whether a host refresh token is configured.
func (c *Client) CanControlPlayback() bool {
	return c.refreshToken != ""
}

// Search queries the track catalog.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	token, err := c.getAppToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/search?type=track&q=%s&limit=%d",
		apiBaseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("search", resp)
	}

	var payload struct {
		Tracks struct {
			Items []struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				DurationMs int    `json:"duration_ms"`
				Artists    []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Images []struct {
						URL string `json:"url"`
					} `json:"images"`
				} `json:"album"`
			} `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode spotify search response: %w", err)
	}

	tracks := make([]Track, 0, len(payload.Tracks.Items))
	for _, item := range payload.Tracks.Items {
		track := Track{
			SpotifyID:  item.ID,
			Name:       item.Name,
			DurationMs: item.DurationMs,
		}
		artists := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			artists = append(artists, a.Name)
		}
		track.ArtistName = strings.Join(artists, ", ")
		if len(item.Album.Images) > 0 {
			imageURL := item.Album.Images[0].URL
			track.ImageURL = &imageURL
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// Play starts a track on the given device at the given offset.
func (c *Client) Play(ctx context.Context, deviceID, spotifyID string, positionMs int) error {
	token, err := c.getUserToken(ctx)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`{"uris":["spotify:track:%s"],"position_ms":%d}`, spotifyID, positionMs)
	endpoint := apiBaseURL + "/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify play request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError("play", resp)
	}
	return nil
}

// Pause stops playback on the given device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	token, err := c.getUserToken(ctx)
	if err != nil {
		return err
	}

	endpoint := apiBaseURL + "/me/player/pause"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify pause request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError("pause", resp)
	}
	return nil
}

func (c *Client) getAppToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appToken != "" && time.Now().Before(c.appExpiry) {
		return c.appToken, nil
	}

	token, expiresIn, err := c.requestToken(ctx, url.Values{
		"grant_type": {"client_credentials"},
	})
	if err != nil {
		return "", err
	}
	c.appToken = token
	c.appExpiry = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenSlack)
	return token, nil
}

func (c *Client) getUserToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshToken == "" {
		return "", fmt.Errorf("spotify playback control is not configured")
	}
	if c.userToken != "" && time.Now().Before(c.userExpiry) {
		return c.userToken, nil
	}

	token, expiresIn, err := c.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	})
	if err != nil {
		return "", err
	}
	c.userToken = token
	c.userExpiry = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenSlack)
	return token, nil
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, accountsURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("spotify token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, apiError("token", resp)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("failed to decode spotify token response: %w", err)
	}
	return payload.AccessToken, payload.ExpiresIn, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("spotify %s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
