package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
)

const maxManifestSize = 4 << 20

// fetchError is a manifest request that failed. Only temporary ones are retried.
type fetchError struct {
	err       error
	temporary bool
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

func isTemporary(err error) bool {
	fe, ok := err.(*fetchError)
	return ok && fe.temporary
}

func (h *HLS) fetchManifest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &fetchError{err: err}
	}

	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &fetchError{err: ctx.Err()}
		}
		return nil, &fetchError{err: fmt.Errorf("fetch manifest: %w", err), temporary: true}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusGone:
		return nil, &fetchError{err: fmt.Errorf("%w: cdn answered %d", ErrURLExpired, resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &fetchError{err: ErrStreamNotFound}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, &fetchError{err: fmt.Errorf("fetch manifest: status %d", resp.StatusCode), temporary: true}
	default:
		return nil, &fetchError{err: fmt.Errorf("fetch manifest: status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, &fetchError{err: fmt.Errorf("read manifest: %w", err), temporary: true}
	}
	return body, nil
}

// parseLevels decodes a playlist into levels in source order. A media
// playlist is a stream with a single level.
func parseLevels(body []byte, base *url.URL) ([]Level, error) {
	playlist, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}

	switch kind {
	case m3u8.MEDIA:
		return []Level{{Label: "source", URI: base.String()}}, nil
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, ErrBadManifest
		}

		var levels []Level
		for _, v := range master.Variants {
			if v == nil || v.URI == "" || v.Iframe {
				continue
			}
			height := parseHeight(v.Resolution)
			levels = append(levels, Level{
				Height:  height,
				Bitrate: int(v.Bandwidth),
				Label:   label(height, int(v.Bandwidth), v.Name),
				URI:     resolveURI(base, v.URI),
			})
		}
		if len(levels) == 0 {
			return nil, fmt.Errorf("%w: master playlist has no variants", ErrBadManifest)
		}
		return levels, nil
	default:
		return nil, ErrBadManifest
	}
}

func parseHeight(resolution string) int {
	_, h, ok := strings.Cut(resolution, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func label(height, bitrate int, name string) string {
	switch {
	case height > 0:
		return strconv.Itoa(height) + "p"
	case name != "":
		return name
	default:
		return strconv.Itoa(bitrate/1000) + " kbps"
	}
}

// resolveURI makes a variant URI absolute. Variants without their own
// query inherit the master's, which carries the CDN token.
func resolveURI(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	resolved := base.ResolveReference(u)
	if resolved.RawQuery == "" && resolved.Host == base.Host {
		resolved.RawQuery = base.RawQuery
	}
	return resolved.String()
}
