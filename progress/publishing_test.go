package progress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	. "github.com/smartystreets/goconvey/convey"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	msgs []published
	err  error
}

func (f *fakeJetStream) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subj, data})
	return nil, nil
}

type failingStore struct{ Store }

func (failingStore) Save(context.Context, string, string, int, bool) error {
	return errors.New("down")
}

func TestPublishing(t *testing.T) {
	Convey("Given a publishing store", t, func() {
		js := &fakeJetStream{}
		inner := newMemStore()
		store := newPublishing(inner, js, "activity.progress")
		ctx := context.Background()

		Convey("A successful save is announced", func() {
			So(store.Save(ctx, "u", "v", 57, false), ShouldBeNil)
			So(js.msgs, ShouldHaveLength, 1)
			So(js.msgs[0].subject, ShouldEqual, "activity.progress")

			var evt Event
			So(json.Unmarshal(js.msgs[0].data, &evt), ShouldBeNil)
			So(evt.ProgressSeconds, ShouldEqual, 57)
			So(evt.EventID, ShouldNotBeEmpty)
		})

		Convey("Reads pass through", func() {
			So(store.Save(ctx, "u", "v", 9, true), ShouldBeNil)
			rec, err := store.Get(ctx, "u", "v")
			So(err, ShouldBeNil)
			So(rec.IsCompleted, ShouldBeTrue)
		})

		Convey("Publish failures do not fail the save", func() {
			js.err = errors.New("no responders")
			So(store.Save(ctx, "u", "v", 1, false), ShouldBeNil)
		})

		Convey("A failed save publishes nothing", func() {
			store := newPublishing(failingStore{inner}, js, "activity.progress")
			So(store.Save(ctx, "u", "v", 1, false), ShouldNotBeNil)
			So(js.msgs, ShouldBeEmpty)
		})
	})
}
