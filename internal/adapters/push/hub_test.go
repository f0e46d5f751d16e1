package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/turf/internal/domain/model"
)

var fixed = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entries(ids ...string) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, len(ids))
	for i, id := range ids {
		out[i] = model.LeaderboardEntry{UserID: id, Name: id, TotalSteps: int64(100 - i), Rank: i + 1}
	}
	return out
}

func dial(srv *httptest.Server) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readMessage(conn *websocket.Conn) (Message, error) {
	var m Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

func TestHubOverWebsocket(t *testing.T) {
	Convey("Given a hub serving the daily window", t, func() {
		ctx := context.Background()
		hub := NewHub(WithClock(func() time.Time { return fixed }))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = hub.ServeWS(w, r, model.WindowDaily)
		}))
		defer srv.Close()
		defer hub.Close()

		So(hub.Publish(ctx, model.WindowDaily, entries("a", "b")), ShouldBeNil)

		conn, err := dial(srv)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Then a new subscriber gets the latest snapshot", func() {
			m, err := readMessage(conn)
			So(err, ShouldBeNil)
			So(m.Type, ShouldEqual, MessageTypeLeaderboard)
			So(m.Data.Window, ShouldEqual, "daily")
			So(m.Data.GeneratedAt.Equal(fixed), ShouldBeTrue)
			So(m.Data.Entries, ShouldHaveLength, 2)
			So(hub.Clients(model.WindowDaily), ShouldEqual, 1)

			Convey("And later snapshots for its window", func() {
				So(hub.Publish(ctx, model.WindowWeekly, entries("x")), ShouldBeNil)
				So(hub.Publish(ctx, model.WindowDaily, entries("c")), ShouldBeNil)

				m, err := readMessage(conn)
				So(err, ShouldBeNil)
				So(m.Data.Window, ShouldEqual, "daily")
				So(m.Data.Entries[0].UserID, ShouldEqual, "c")
			})

			Convey("And closing the hub disconnects it", func() {
				hub.Close()
				_, err := readMessage(conn)
				So(err, ShouldNotBeNil)
				So(hub.Clients(model.WindowDaily), ShouldEqual, 0)
			})
		})
	})
}

func TestHubSlowSubscriber(t *testing.T) {
	Convey("Given a subscriber with a one-slot buffer", t, func() {
		ctx := context.Background()
		hub := NewHub(WithSendBuffer(1))
		c := newClient(hub, nil, model.WindowWeekly, 1)
		So(hub.register(c), ShouldBeTrue)

		Convey("When snapshots arrive faster than it reads", func() {
			So(hub.Publish(ctx, model.WindowWeekly, entries("a")), ShouldBeNil)
			So(hub.Publish(ctx, model.WindowWeekly, entries("b")), ShouldBeNil)

			Convey("Then it is dropped and its channel closed", func() {
				So(hub.Clients(model.WindowWeekly), ShouldEqual, 0)
				_, ok := <-c.send
				So(ok, ShouldBeTrue)
				_, ok = <-c.send
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a closed hub", t, func() {
		hub := NewHub()
		hub.Close()

		Convey("Then publishing is a no-op and registration is refused", func() {
			So(hub.Publish(context.Background(), model.WindowDaily, nil), ShouldBeNil)
			So(hub.register(newClient(hub, nil, model.WindowDaily, 1)), ShouldBeFalse)
			So(hub.Name(), ShouldEqual, NotifierName)
		})
	})
}
