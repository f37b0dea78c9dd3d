package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webcoder/internal/testutil"
	"webcoder/pkg/utils/contextkey"
)

func TestDoAttachesTokenAndTrace(t *testing.T) {
	var gotAuth, gotTrace, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Trace-Id")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(srv.URL+"/", time.Second, func() string { return "tok" })
	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-9")
	resp, err := client.Do(ctx, http.MethodPost, "/things/", nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}
	testutil.AssertEqual(t, resp.StatusCode, http.StatusCreated)
	testutil.AssertEqual(t, string(resp.Body), `{"ok":true}`)
	testutil.AssertEqual(t, gotAuth, "Bearer tok")
	testutil.AssertEqual(t, gotTrace, "trace-9")
	testutil.AssertEqual(t, gotType, "application/json")
	testutil.AssertEqual(t, string(gotBody), `{"a":1}`)
}

func TestDoExplicitAuthorizationWins(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, func() string { return "ambient" })
	_, err := client.Do(context.Background(), http.MethodGet, "/", map[string]string{"Authorization": "Bearer explicit"}, nil)
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}
	testutil.AssertEqual(t, gotAuth, "Bearer explicit")
}

func TestDoGeneratesTraceID(t *testing.T) {
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-Trace-Id")
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, nil)
	if _, err := client.Do(context.Background(), http.MethodGet, "/", nil, nil); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	testutil.AssertTrue(t, len(gotTrace) == 36, "trace id should be a uuid")
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := New(srv.URL, 50*time.Millisecond, nil)
	if _, err := client.Do(context.Background(), http.MethodGet, "/", nil, nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSetBaseURLTrimsSlash(t *testing.T) {
	client := New("http://a/", time.Second, nil)
	client.SetBaseURL("http://b/api/v1/")
	testutil.AssertEqual(t, client.BaseURL(), "http://b/api/v1")
}
