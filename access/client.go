package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/network"
)

// Client asks the course platform to sign a stream URL. The platform
// checks the caller's enrollment and its expiry.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	now     func() time.Time
}

// NewClient returns a Resolver backed by the access endpoint at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    network.Client,
		now:     time.Now,
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signedUrl"`
	EmbedURL  string `json:"embedUrl"`
	ExpiresIn int    `json:"expiresIn"`
	Video     Video  `json:"video"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (c *Client) Resolve(ctx context.Context, videoID, token string) (Grant, error) {
	endpoint := c.BaseURL + "/api/videos/" + url.PathEscape(videoID) + "/signed-url"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Grant{}, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	requested := c.now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("request signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		log.WithFields(log.Fields{
			"video":  videoID,
			"status": resp.StatusCode,
			"reason": body.Error + body.Detail,
		}).Warn("signed url refused")

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return Grant{}, ErrUnauthorized
		case http.StatusForbidden:
			return Grant{}, ErrForbidden
		case http.StatusNotFound:
			return Grant{}, ErrNotFound
		default:
			return Grant{}, fmt.Errorf("signed url: unexpected status %d", resp.StatusCode)
		}
	}

	var body signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Grant{}, fmt.Errorf("decode signed url: %w", err)
	}
	if body.SignedURL == "" {
		return Grant{}, ErrNoPlayableURL
	}
	if body.Video.ID == "" {
		body.Video.ID = videoID
	}

	grant := Grant{
		PlayableURL: body.SignedURL,
		EmbedURL:    body.EmbedURL,
		Video:       body.Video,
	}
	if body.ExpiresIn > 0 {
		grant.ExpiresIn = time.Duration(body.ExpiresIn) * time.Second
		grant.Expires = requested.Add(grant.ExpiresIn)
	}
	return grant, nil
}
