package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnl/fab-notion/internal/config"
	"github.com/qnl/fab-notion/internal/notion"
)

const (
	testStatusID   = "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
	testSuppliesID = "f9e8d7c6-b5a4-9382-7160-5f4e3d2c1b0a"
)

// fakeStore is an httptest-backed remote store counting auth traffic.
type fakeStore struct {
	server *httptest.Server

	verifyStatus int
	loginStatus  int
	loginToken   string

	verifyCalls atomic.Int32
	loginCalls  atomic.Int32
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	s := &fakeStore{
		verifyStatus: http.StatusOK,
		loginStatus:  http.StatusOK,
		loginToken:   "fresh-token",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/loadUserContent", func(w http.ResponseWriter, _ *http.Request) {
		s.verifyCalls.Add(1)
		w.WriteHeader(s.verifyStatus)
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/loginWithEmail", func(w http.ResponseWriter, _ *http.Request) {
		s.loginCalls.Add(1)
		if s.loginStatus != http.StatusOK {
			w.WriteHeader(s.loginStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "token_v2", Value: s.loginToken})
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/getRecordValues", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"results": [{"value": {
			"id": %q,
			"properties": {"title": [["__Barcode Scanner Status:__"]]},
			"schema": []
		}}]}`, testStatusID)
	})
	mux.HandleFunc("/queryCollection", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})
	mux.HandleFunc("/submitTransaction", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		Token:    "stale-token",
		Email:    "stockroom@example.com",
		Password: "hunter2",
		Status:   testStatusID,
		Supplies: testSuppliesID,
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)
	client := notion.NewClient(store.server.URL, notion.WithToken("stale-token"))

	err := Authenticate(context.Background(), client, testConfig(), filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.verifyCalls.Load())
	assert.Equal(t, int32(0), store.loginCalls.Load(), "valid token must not trigger a password login")
	assert.Equal(t, "stale-token", client.Token())
}

func TestAuthenticateRejectedTokenFallsBack(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)
	store.verifyStatus = http.StatusUnauthorized
	client := notion.NewClient(store.server.URL, notion.WithToken("stale-token"))

	cfg := testConfig()
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.Save(configPath))

	err := Authenticate(context.Background(), client, cfg, configPath)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.loginCalls.Load(), "rejected token must trigger exactly one password login")
	assert.Equal(t, "fresh-token", client.Token())
	assert.Equal(t, "fresh-token", cfg.Token)

	// The fresh token must survive a restart.
	saved, err := config.LoadConfig(config.WithConfigPath(configPath))
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", saved.Token)
}

func TestAuthenticateNonAuthErrorSurfaces(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)
	store.verifyStatus = http.StatusNotFound
	client := notion.NewClient(store.server.URL, notion.WithToken("stale-token"))

	err := Authenticate(context.Background(), client, testConfig(), filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)
	assert.Equal(t, int32(0), store.loginCalls.Load(), "non-auth failures must not trigger a password login")
}

func TestAuthenticateNoCredentials(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)
	store.verifyStatus = http.StatusUnauthorized
	client := notion.NewClient(store.server.URL, notion.WithToken("stale-token"))

	cfg := testConfig()
	cfg.Email = ""
	cfg.Password = ""

	err := Authenticate(context.Background(), client, cfg, filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid token")
}

func TestAuthenticateFailedLogin(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)
	store.verifyStatus = http.StatusUnauthorized
	store.loginStatus = http.StatusUnauthorized
	client := notion.NewClient(store.server.URL, notion.WithToken("stale-token"))

	err := Authenticate(context.Background(), client, testConfig(), filepath.Join(t.TempDir(), "config.json"))
	require.Error(t, err)
	assert.Equal(t, int32(1), store.loginCalls.Load())
}

func TestBuildStartStop(t *testing.T) {
	t.Parallel()
	store := newFakeStore(t)

	dir := t.TempDir()
	cfg := testConfig()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, cfg.Save(configPath))

	application, err := Build(context.Background(), cfg, Settings{
		ConfigPath: configPath,
		BarcodeDir: filepath.Join(dir, "barcodes"),
		BaseURL:    store.server.URL,
		Interval:   time.Hour,
		Input:      strings.NewReader(""),
	})
	require.NoError(t, err)
	require.NotNil(t, application.Components().Tracker)

	application.Start(context.Background())
	require.NoError(t, application.Stop(5*time.Second))
}

func TestBuildInvalidStatusRecord(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/loadUserContent", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/getRecordValues", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"value": null}]}`))
	})
	missing := httptest.NewServer(mux)
	t.Cleanup(missing.Close)

	_, err := Build(context.Background(), testConfig(), Settings{
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		BarcodeDir: t.TempDir(),
		BaseURL:    missing.URL,
		Input:      strings.NewReader(""),
	})
	require.ErrorIs(t, err, notion.ErrRecordNotFound)
}
