package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakePlatform struct {
	mu      sync.Mutex
	records map[string]Record
	auth    []string
	status  int
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		rec, ok := f.records[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(rec)
	case http.MethodPost:
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.records[id] = rec
		w.WriteHeader(http.StatusOK)
	}
}

func newPlatform() (*fakePlatform, *httptest.Server) {
	f := &fakePlatform{records: make(map[string]Record)}
	mux := http.NewServeMux()
	mux.Handle("/api/videos/{id}/progress", f)
	return f, httptest.NewServer(mux)
}

func TestAPI(t *testing.T) {
	Convey("Given the platform progress endpoint", t, func() {
		platform, srv := newPlatform()
		defer srv.Close()

		api := NewAPI(srv.URL+"/", "tok")
		api.Client = srv.Client()
		ctx := context.Background()

		Convey("A video without a record yields the default", func() {
			rec, err := api.Get(ctx, "u1", "v1")
			So(err, ShouldBeNil)
			So(rec.ProgressSeconds, ShouldEqual, 0)
			So(rec.IsCompleted, ShouldBeFalse)
			So(rec.VideoID, ShouldEqual, "v1")
		})

		Convey("Saving twice leaves one record", func() {
			So(api.Save(ctx, "u1", "v1", 120, false), ShouldBeNil)
			So(api.Save(ctx, "u1", "v1", 120, false), ShouldBeNil)
			So(platform.records, ShouldHaveLength, 1)

			rec, err := api.Get(ctx, "u1", "v1")
			So(err, ShouldBeNil)
			So(rec.ProgressSeconds, ShouldEqual, 120)
		})

		Convey("The bearer token is sent", func() {
			_, _ = api.Get(ctx, "u1", "v1")
			So(platform.auth[0], ShouldEqual, "Bearer tok")
		})

		Convey("Negative seconds are rejected before any request", func() {
			err := api.Save(ctx, "u1", "v1", -1, false)
			So(errors.Is(err, ErrNegativeProgress), ShouldBeTrue)
			So(platform.auth, ShouldBeEmpty)
		})

		Convey("Server errors surface as StatusError", func() {
			platform.status = http.StatusInternalServerError
			_, err := api.Get(ctx, "u1", "v1")
			var se *StatusError
			So(err, ShouldHaveSameTypeAs, se)
			So(api.Save(ctx, "u1", "v1", 1, false), ShouldNotBeNil)
		})
	})
}
