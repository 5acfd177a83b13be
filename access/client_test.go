package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func platform(status int, body string) (*httptest.Server, *http.Request) {
	var got http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return srv, &got
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	Convey("Given a platform that grants access", t, func() {
		srv, req := platform(http.StatusOK, `{
			"signedUrl": "https://cdn.example/v1/playlist.m3u8?token=t&expires=1",
			"embedUrl": "https://iframe.mediadelivery.net/embed/1/v1",
			"video": {"id": "v1", "title": "Intro", "duration_seconds": 600},
			"expiresIn": 7200
		}`)
		defer srv.Close()

		c := NewClient(srv.URL)
		c.HTTP = srv.Client()
		c.now = func() time.Time { return now }

		grant, err := c.Resolve(ctx, "v1", "tok")

		Convey("The grant carries URLs, metadata and expiry", func() {
			So(err, ShouldBeNil)
			So(grant.PlayableURL, ShouldStartWith, "https://cdn.example/v1/playlist.m3u8")
			So(grant.EmbedURL, ShouldNotBeEmpty)
			So(grant.Video.Title, ShouldEqual, "Intro")
			So(grant.Video.DurationSeconds, ShouldEqual, 600)
			So(grant.ExpiresIn, ShouldEqual, 2*time.Hour)
			So(grant.Expires, ShouldEqual, now.Add(2*time.Hour))
			So(grant.Expired(now.Add(time.Hour)), ShouldBeFalse)
			So(grant.Expired(now.Add(2*time.Hour)), ShouldBeTrue)
		})

		Convey("The request is an authenticated POST to the signed-url endpoint", func() {
			So(req.Method, ShouldEqual, http.MethodPost)
			So(req.URL.Path, ShouldEqual, "/api/videos/v1/signed-url")
			So(req.Header.Get("Authorization"), ShouldEqual, "Bearer tok")
		})
	})

	Convey("Refusals map to access errors", t, func() {
		for status, want := range map[int]error{
			http.StatusUnauthorized: ErrUnauthorized,
			http.StatusForbidden:    ErrForbidden,
			http.StatusNotFound:     ErrNotFound,
		} {
			srv, _ := platform(status, `{"error": "nope"}`)
			c := NewClient(srv.URL)
			c.HTTP = srv.Client()

			_, err := c.Resolve(ctx, "v1", "tok")
			So(errors.Is(err, want), ShouldBeTrue)
			So(IsAccessError(err), ShouldBeTrue)
			srv.Close()
		}
	})

	Convey("A grant without a playable URL is rejected", t, func() {
		srv, _ := platform(http.StatusOK, `{"signedUrl": "", "expiresIn": 7200}`)
		defer srv.Close()
		c := NewClient(srv.URL)
		c.HTTP = srv.Client()

		_, err := c.Resolve(ctx, "v1", "tok")
		So(errors.Is(err, ErrNoPlayableURL), ShouldBeTrue)
	})

	Convey("Server errors are not access errors", t, func() {
		srv, _ := platform(http.StatusBadGateway, ``)
		defer srv.Close()
		c := NewClient(srv.URL)
		c.HTTP = srv.Client()

		_, err := c.Resolve(ctx, "v1", "tok")
		So(err, ShouldNotBeNil)
		So(IsAccessError(err), ShouldBeFalse)
	})
}
