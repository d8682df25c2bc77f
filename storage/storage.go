// Package storage is the object store holding questionnaire attachments.
package storage

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Bucket is the single namespace attachments live in.
const Bucket = "questionnaire-files"

var ErrInvalidPath = stderrors.New("invalid object path")

// ObjectStore is a flat key/blob store with slash separated keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, keys ...string) error
	PublicURL(key string) string
}

// Dir stores objects as files below root/Bucket and publishes them under
// baseURL.
type Dir struct {
	root    string
	baseURL string
}

// NewDir creates the bucket directory if needed.
func NewDir(root, baseURL string) (*Dir, error) {
	dir := filepath.Join(root, Bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage.mkdir")
	}
	return &Dir{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Dir) file(key string) (string, error) {
	if key == "" || !fs.ValidPath(key) {
		return "", errors.Wrapf(ErrInvalidPath, "%q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

// Put writes r under key. The object appears only once fully written.
func (d *Dir) Put(ctx context.Context, key string, r io.Reader) error {
	name, err := d.file(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return errors.Wrap(err, "storage.put.mkdir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "storage.put.create")
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, readerWithContext{ctx, r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "storage.put.write")
	}
	return errors.Wrap(os.Rename(tmp.Name(), name), "storage.put.rename")
}

func (d *Dir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	name, err := d.file(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "storage.open")
	}
	return f, nil
}

// List returns every key starting with prefix, sorted.
func (d *Dir) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "storage.list")
	}
	sort.Strings(keys)
	return keys, nil
}

// Remove deletes every key, continuing past failures. Missing keys are not
// an error. Emptied directories are pruned.
func (d *Dir) Remove(ctx context.Context, keys ...string) error {
	var result *multierror.Error
	dirs := map[string]bool{}
	for _, key := range keys {
		name, err := d.file(key)
		if err == nil {
			err = os.Remove(name)
		}
		if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, errors.Wrapf(err, "storage.remove %s", key))
			continue
		}
		for dir := path.Dir(key); dir != "."; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}
	d.prune(dirs)
	return result.ErrorOrNil()
}

// prune removes empty directories, deepest first.
func (d *Dir) prune(dirs map[string]bool) {
	list := make([]string, 0, len(dirs))
	for dir := range dirs {
		list = append(list, dir)
	}
	sort.Slice(list, func(i, j int) bool { return len(list[i]) > len(list[j]) })
	for _, dir := range list {
		os.Remove(filepath.Join(d.root, filepath.FromSlash(dir)))
	}
}

func (d *Dir) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return d.baseURL + "/" + strings.Join(parts, "/")
}

// Handler serves the stored objects read-only by exact key. Directories
// and partial uploads are not found, so a folder cannot be enumerated.
func (d *Dir) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		name, err := d.file(key)
		if err != nil || strings.HasSuffix(key, "/") || strings.HasPrefix(path.Base(key), ".upload-") {
			http.NotFound(w, r)
			return
		}
		f, err := os.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
