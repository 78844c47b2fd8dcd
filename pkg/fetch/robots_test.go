package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func robotsServer(t *testing.T, robots string, robotsStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	robotsHits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			w.WriteHeader(robotsStatus)
			_, _ = w.Write([]byte(robots))
			return
		}
		_, _ = w.Write([]byte("page"))
	}))
	t.Cleanup(server.Close)
	return server, robotsHits
}

func TestRobotsHandler_TestAgentAndCache(t *testing.T) {
	server, hits := robotsServer(t, "User-agent: *\nDisallow: /private/\n", http.StatusOK)
	rh := NewRobotsHandler(testFetcher(), "test-agent", testLogger())

	allowed, _ := url.Parse(server.URL + "/b1/")
	blocked, _ := url.Parse(server.URL + "/private/b2/")

	assert.True(t, rh.TestAgent(context.Background(), allowed))
	assert.False(t, rh.TestAgent(context.Background(), blocked))
	assert.Equal(t, int32(1), hits.Load(), "robots.txt is fetched once per host")
}

func TestRobotsHandler_MissingRobotsAllowsAll(t *testing.T) {
	server, _ := robotsServer(t, "", http.StatusNotFound)
	rh := NewRobotsHandler(testFetcher(), "test-agent", testLogger())

	u, _ := url.Parse(server.URL + "/anything/")
	assert.True(t, rh.TestAgent(context.Background(), u))
	assert.Nil(t, rh.GetRobotsData(context.Background(), u))
}

func TestRobotsFetcher_Disallowed(t *testing.T) {
	server, _ := robotsServer(t, "User-agent: *\nDisallow: /private/\n", http.StatusOK)
	pf := testFetcher()
	rf := &RobotsFetcher{Next: pf, Robots: NewRobotsHandler(pf, "test-agent", testLogger())}

	_, err := rf.Fetch(context.Background(), server.URL+"/private/b1/")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)

	page, err := rf.Fetch(context.Background(), server.URL+"/b1/")
	require.NoError(t, err)
	assert.Equal(t, "page", string(page.Body))
}
