package resolver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	bodies map[string]string
	err    error
	calls  []string
}

func (f *fakeFetcher) GetBody(_ context.Context, rawURL string, _ http.Header) ([]byte, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.bodies[rawURL]), nil
}

func TestResolvePlainURL(t *testing.T) {
	f := &fakeFetcher{}
	r := New(f, zap.NewNop())
	got := r.Resolve(context.Background(), "http://radio.example.com/live.mp3")
	assert.Equal(t, []string{"http://radio.example.com/live.mp3"}, got)
	assert.Empty(t, f.calls, "plain urls must not be fetched")
}

func TestResolveMMSWithoutNetwork(t *testing.T) {
	f := &fakeFetcher{}
	r := New(f, zap.NewNop())
	got := r.Resolve(context.Background(), "mms://wm.example.com/radio")
	assert.Len(t, got, 3)
	assert.Empty(t, f.calls)
}

func TestResolvePlaylists(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"http://x.example.com/a.m3u":  "#EXTM3U\nhttp://s1.example.com/1\nhttp://s2.example.com/2\n",
		"http://x.example.com/b.pls":  "[playlist]\nFile1=http://s3.example.com/3\n",
		"http://x.example.com/c.xspf": `<playlist><trackList><track><location>http://s4.example.com/4</location></track></trackList></playlist>`,
	}}
	r := New(f, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, []string{"http://s1.example.com/1", "http://s2.example.com/2"},
		r.Resolve(ctx, "http://x.example.com/a.m3u"))
	assert.Equal(t, []string{"http://s3.example.com/3"},
		r.Resolve(ctx, "http://x.example.com/b.pls"))
	assert.Equal(t, []string{"http://s4.example.com/4"},
		r.Resolve(ctx, "http://x.example.com/c.xspf"))
}

func TestResolveFetchFailureFallsBack(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	r := New(f, zap.NewNop())
	got := r.Resolve(context.Background(), "http://x.example.com/a.m3u")
	assert.Equal(t, []string{"http://x.example.com/a.m3u"}, got)
}

func TestResolveEmptyPlaylistFallsBack(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{"http://x.example.com/a.pls": "[playlist]\n"}}
	r := New(f, zap.NewNop())
	got := r.Resolve(context.Background(), "http://x.example.com/a.pls")
	assert.Equal(t, []string{"http://x.example.com/a.pls"}, got)
}

func TestResolveBadXSPFFallsBack(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{"http://x.example.com/a.xspf": "<<<"}}
	r := New(f, zap.NewNop())
	got := r.Resolve(context.Background(), "http://x.example.com/a.xspf")
	assert.Equal(t, []string{"http://x.example.com/a.xspf"}, got)
}

func TestResolveBlocksPrivateTargets(t *testing.T) {
	orig := lookupIP
	lookupIP = func(host string) ([]net.IP, error) {
		if ip := net.ParseIP(host); ip != nil {
			return []net.IP{ip}, nil
		}
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	}
	t.Cleanup(func() { lookupIP = orig })

	f := &fakeFetcher{bodies: map[string]string{
		"http://x.example.com/a.m3u": "http://127.0.0.1/admin\nhttp://10.1.2.3/x\nhttp://public.example.com/live\n",
	}}
	r := New(f, zap.NewNop(), WithBlockPrivateTargets(true))
	got := r.Resolve(context.Background(), "http://x.example.com/a.m3u")
	assert.Equal(t, []string{"http://public.example.com/live"}, got)
}

func TestValidateURL(t *testing.T) {
	assert.Error(t, ValidateURL("ftp://example.com/x"))
	assert.Error(t, ValidateURL("http:///nohost"))
	assert.Error(t, ValidateURL("http://192.168.1.10/stream"))
	assert.Error(t, ValidateURL("http://[::1]/stream"))
}

func TestResolveRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("#EXTM3U\nhttp://s1.example.com/live\n"))
	}))
	defer srv.Close()

	r := New(NewFetcher(2*time.Second, zap.NewNop()), zap.NewNop())
	got := r.Resolve(context.Background(), srv.URL+"/list.m3u")

	assert.Equal(t, []string{"http://s1.example.com/live"}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveFallsBackAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := New(NewFetcher(2*time.Second, zap.NewNop()), zap.NewNop())
	raw := srv.URL + "/list.pls"

	assert.Equal(t, []string{raw}, r.Resolve(context.Background(), raw))
	assert.Equal(t, int32(2), calls.Load())
}
