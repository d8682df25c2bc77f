package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir(), "http://localhost/files/")
	require.NoError(t, err)
	return d
}

func TestPutOpenList(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "motion/acme/1-a.png", strings.NewReader("png")))
	require.NoError(t, d.Put(ctx, "motion/acme/2-b.pdf", strings.NewReader("pdf")))
	require.NoError(t, d.Put(ctx, "motion/acme-2/3-c.txt", strings.NewReader("txt")))

	r, err := d.Open(ctx, "motion/acme/1-a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "png", string(data))

	keys, err := d.List(ctx, "motion/acme/")
	require.NoError(t, err)
	assert.Equal(t, []string{"motion/acme/1-a.png", "motion/acme/2-b.pdf"}, keys)

	_, err = d.Open(ctx, "motion/acme/missing")
	assert.Error(t, err)
}

func TestRejectsEscapingKeys(t *testing.T) {
	d := newTestDir(t)
	for _, key := range []string{"", "../x", "/abs", "a/../../b"} {
		assert.ErrorIs(t, d.Put(context.Background(), key, strings.NewReader("x")), ErrInvalidPath, key)
	}
}

func TestRemovePrunesDirectories(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()
	require.NoError(t, d.Put(ctx, "motion/acme/1-a.png", strings.NewReader("png")))
	require.NoError(t, d.Put(ctx, "motion/acme/2-b.pdf", strings.NewReader("pdf")))

	require.NoError(t, d.Remove(ctx, "motion/acme/1-a.png", "motion/acme/2-b.pdf", "motion/acme/never-there"))
	keys, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = os.Stat(filepath.Join(d.root, "motion", "acme"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveAggregatesErrors(t *testing.T) {
	d := newTestDir(t)
	err := d.Remove(context.Background(), "../a", "../b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestPublicURLAndHandler(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Put(context.Background(), "motion/acme/my file.txt", strings.NewReader("hello")))
	assert.Equal(t, "http://localhost/files/motion/acme/my%20file.txt", d.PublicURL("motion/acme/my file.txt"))

	srv := httptest.NewServer(http.StripPrefix("/files", d.Handler()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/files/motion/acme/my%20file.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))
}

func TestHandlerDoesNotListFolders(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()
	require.NoError(t, d.Put(ctx, "motion/acme/1-secret.pdf", strings.NewReader("pdf")))
	require.NoError(t, d.Put(ctx, "web-design-new/globex/2-plan.pdf", strings.NewReader("plan")))

	h := d.Handler()
	for _, target := range []string{"/", "/motion", "/motion/", "/motion/acme", "/motion/acme/", "/../motion/acme/1-secret.pdf"} {
		req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
		req.URL.Path = target
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "secret", target)
		assert.NotContains(t, rec.Body.String(), "globex", target)
	}

	req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
	req.URL.Path = "/motion/acme/1-secret.pdf"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", rec.Body.String())
}
