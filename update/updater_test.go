package update

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T, tag string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("GET /repos/GoCodeAlone/switchboard/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		fmt.Fprintf(w, `{"tag_name":%q,"assets":[
			{"name":"switchboard_darwin_arm64.tar.gz","browser_download_url":"%s/dl/darwin"},
			{"name":"switchboard_Linux_x86_64","browser_download_url":"%s/dl/linux"}
		]}`, tag, srv.URL, srv.URL)
	})
	mux.HandleFunc("GET /dl/linux", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("new-binary")) //nolint:errcheck
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestUpdater(base, version string) *Updater {
	u := New(version)
	u.APIBase = base
	u.GOOS, u.GOARCH = "linux", "amd64"
	return u
}

func TestCheck(t *testing.T) {
	srv := releaseServer(t, "v1.2.0")

	rel, err := newTestUpdater(srv.URL, "v1.1.0").Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "v1.2.0", rel.Version)
	assert.Equal(t, srv.URL+"/dl/linux", rel.URL)
}

func TestCheck_UpToDate(t *testing.T) {
	srv := releaseServer(t, "v1.2.0")

	rel, err := newTestUpdater(srv.URL, "1.2.0").Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rel)

	rel, err = newTestUpdater(srv.URL, "dev").Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestCheck_NoAsset(t *testing.T) {
	srv := releaseServer(t, "v2.0.0")
	u := newTestUpdater(srv.URL, "v1.0.0")
	u.GOOS = "windows"

	_, err := u.Check(context.Background())
	assert.ErrorIs(t, err, ErrNoAsset)
}

func TestCheck_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestUpdater(srv.URL, "v1.0.0").Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestApply(t *testing.T) {
	srv := releaseServer(t, "v1.2.0")
	exe := filepath.Join(t.TempDir(), "switchboard")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))

	u := newTestUpdater(srv.URL, "v1.1.0")
	rel, err := u.Check(context.Background())
	require.NoError(t, err)
	require.NoError(t, u.Apply(context.Background(), rel, exe))

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new-binary", string(data))

	entries, err := os.ReadDir(filepath.Dir(exe))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
