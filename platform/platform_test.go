package platform

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/brickhost/brickd/engine/config"
)

func testClient(t *testing.T, handler http.Handler) (*httptest.Server, *config.PlatformConfig) {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, &config.PlatformConfig{
		BaseUrl:      ts.URL,
		AssetBaseUrl: ts.URL,
		Timeout:      time.Second * 5,
	}
}

func TestVerifyToken(t *testing.T) {
	_, cfg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/verifyToken" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("token") {
		case "good":
			fmt.Fprint(w, `{"valid":true,"user":{"id":42,"username":"builderman","membership":1}}`)
		default:
			fmt.Fprint(w, `{"valid":false}`)
		}
	}))
	ac := NewAccountClient(cfg)

	profile, err := ac.VerifyToken("good", 42)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	assert.Equal(t, "builderman", profile.Username)
	assert.Equal(t, uint32(42), profile.UserId)

	if _, err := ac.VerifyToken("bad", 42); err == nil {
		t.Fatalf("invalid token should be rejected")
	}
	// valid token claimed for the wrong user id
	if _, err := ac.VerifyToken("good", 7); err == nil {
		t.Fatalf("user id mismatch should be rejected")
	}
}

func TestOwnsAsset(t *testing.T) {
	_, cfg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/user/42/owns/100":
			fmt.Fprint(w, `{"owns":true}`)
		case "/v1/user/42/owns/200":
			fmt.Fprint(w, `{"owns":false}`)
		default:
			http.NotFound(w, r)
		}
	}))
	ac := NewAccountClient(cfg)

	owns, err := ac.OwnsAsset(42, 100)
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	assert.Equal(t, true, owns)

	owns, err = ac.OwnsAsset(42, 200)
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	assert.Equal(t, false, owns)

	if _, err = ac.OwnsAsset(7, 100); err == nil {
		t.Fatalf("404 should surface as an error")
	}
}

func TestResolveAssetCaches(t *testing.T) {
	var hits int64
	_, cfg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		fmt.Fprint(w, `{"id":9,"type":"mesh","url":"https://cdn.example/9.obj"}`)
	}))
	res := NewAssetResolver(cfg)

	for i := 0; i < 3; i++ {
		ref, err := res.ResolveAsset(9)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		assert.Equal(t, "https://cdn.example/9.obj", ref)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestResolveAssetErrorsNotCached(t *testing.T) {
	var hits int64
	_, cfg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			http.Error(w, "not yet", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"id":9,"type":"mesh","url":"https://cdn.example/9.obj"}`)
	}))
	res := NewAssetResolver(cfg)

	if _, err := res.ResolveAsset(9); err == nil {
		t.Fatalf("500 should surface as an error")
	}
	ref, err := res.ResolveAsset(9)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	assert.Equal(t, "https://cdn.example/9.obj", ref)
}
