package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/vehicle"
)

func newTestServer(action string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		resp := generateResponse{Response: `{"action":"` + action + `","reason":"test"}`}
		data, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	return httptest.NewServer(mux)
}

func TestClientUnavailableUsesFallback(t *testing.T) {
	Convey("Given a client pointed at nothing listening", t, func() {
		c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)

		Convey("it reports unavailable and falls back deterministically", func() {
			So(c.available, ShouldBeFalse)
			act, _, err := c.Resolve(context.Background(), agent.Query{Self: vehicle.Record{ID: "n", Priority: vehicle.NormalPriority}})
			So(err, ShouldBeNil)
			So(act, ShouldEqual, agent.Go)
		})
	})
}

func TestClientResolvesViaAdvisor(t *testing.T) {
	Convey("Given a reachable advisor server", t, func() {
		srv := newTestServer("YIELD")
		defer srv.Close()
		c := New(Config{BaseURL: srv.URL}, nil)

		Convey("the client is available", func() {
			So(c.available, ShouldBeTrue)
		})

		Convey("the first Resolve call returns the fallback while the fetch is in flight, then the cache serves the advisor's answer", func() {
			q := agent.Query{Self: vehicle.Record{ID: "n", Priority: vehicle.NormalPriority}}
			first, _, _ := c.Resolve(context.Background(), q)
			So(first, ShouldEqual, agent.Go)

			So(func() bool {
				for i := 0; i < 50; i++ {
					c.mu.Lock()
					_, cached := c.cache["n"]
					c.mu.Unlock()
					if cached {
						return true
					}
					time.Sleep(10 * time.Millisecond)
				}
				return false
			}(), ShouldBeTrue)

			act, _, _ := c.Resolve(context.Background(), q)
			So(act, ShouldEqual, agent.Yield)
		})
	})
}

func TestClientCacheRespectsTTL(t *testing.T) {
	Convey("Given a cached decision older than the cache TTL", t, func() {
		c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		c.mu.Lock()
		c.cache["n"] = cacheEntry{action: agent.Yield, reason: "stale", at: time.Now().Add(-2 * time.Second)}
		c.mu.Unlock()

		Convey("a fresh Resolve call does not reuse the stale cache entry", func() {
			act, _, _ := c.Resolve(context.Background(), agent.Query{Self: vehicle.Record{ID: "n", Priority: vehicle.NormalPriority}})
			So(act, ShouldEqual, agent.Go) // unavailable client falls back, not the stale cache
		})
	})
}
