package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lectern-cli/lectern/network"
)

// StatusError is returned when the platform answers with an unexpected status.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// API stores progress through the course platform. The user is identified
// by the bearer token, so the userID arguments are only echoed back.
type API struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewAPI returns a Store backed by the progress HTTP API.
func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  network.Client,
	}
}

func (a *API) endpoint(videoID string) string {
	return a.BaseURL + "/api/videos/" + url.PathEscape(videoID) + "/progress"
}

func (a *API) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
	return a.Client.Do(req)
}

func (a *API) Get(ctx context.Context, userID, videoID string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(videoID), nil)
	if err != nil {
		return Record{}, err
	}

	resp, err := a.do(req)
	if err != nil {
		return Record{}, fmt.Errorf("get progress: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return emptyRecord(userID, videoID), nil
	default:
		return Record{}, &StatusError{Op: "get progress", Code: resp.StatusCode}
	}

	rec := emptyRecord(userID, videoID)
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode progress: %w", err)
	}
	rec.UserID, rec.VideoID = userID, videoID
	if rec.ProgressSeconds < 0 {
		rec.ProgressSeconds = 0
	}
	return rec, nil
}

func (a *API) Save(ctx context.Context, userID, videoID string, seconds int, completed bool) error {
	if err := validate(seconds); err != nil {
		return err
	}

	body, err := json.Marshal(Record{ProgressSeconds: seconds, IsCompleted: completed})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(videoID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.do(req)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "save progress", Code: resp.StatusCode}
	}
	return nil
}
