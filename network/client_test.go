package network

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lectern-cli/lectern/constant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Requests carry the lectern user agent", t, func() {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.UserAgent()
		}))
		defer srv.Close()

		resp, err := Client.Get(srv.URL)
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(got, ShouldEqual, constant.UserAgent)

		Convey("Unless the caller sets one", func() {
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			req.Header.Set("User-Agent", "custom")
			resp, err := Client.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(got, ShouldEqual, "custom")
		})
	})
}
