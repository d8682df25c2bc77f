// Package attachments uploads the files answering file questions and
// removes them when their questionnaire is deleted.
package attachments

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/mbolis/quick-questionnaire/model"
	"github.com/mbolis/quick-questionnaire/storage"
	"golang.org/x/sync/errgroup"
)

// MaxFileSize is the per-file upload ceiling.
const MaxFileSize = 10 << 20

// parallelUploads caps the concurrent writes of a batch.
const parallelUploads = 4

type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Result is the outcome of one file of a batch: a public URL, or an error
// which is a *model.FileTooLargeError or a *model.UploadFailedError.
type Result struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Err  error  `json:"-"`
}

type Manager struct {
	store storage.ObjectStore
	now   func() time.Time
}

func NewManager(store storage.ObjectStore) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Key builds <variant>/<slug>/<unix-millis>-<random>.<ext>.
func (m *Manager) Key(inst model.Instance, name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(name)), "."))
	if ext == "" {
		ext = "bin"
	}
	suffix := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")[:8]
	return inst.Folder() + strconv.FormatInt(m.now().UnixMilli(), 10) + "-" + suffix + "." + ext
}

// Upload stores every file of the batch independently: a failing file
// does not prevent the others. Results follow the order of files.
func (m *Manager) Upload(ctx context.Context, inst model.Instance, files []File) []Result {
	results := make([]Result, len(files))
	var g errgroup.Group
	g.SetLimit(parallelUploads)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = m.UploadFile(ctx, inst, f)
			return nil
		})
	}
	g.Wait()
	return results
}

// UploadFile stores a single file. A zero Size means unknown: the ceiling is
// then enforced while reading, so a streamed part is never read past
// MaxFileSize+1 bytes.
func (m *Manager) UploadFile(ctx context.Context, inst model.Instance, f File) Result {
	res := Result{Name: f.Name}
	if f.Size > MaxFileSize {
		res.Err = &model.FileTooLargeError{Name: f.Name, Size: f.Size}
		return res
	}

	key := m.Key(inst, f.Name)
	counter := &countingReader{r: io.LimitReader(f.Content, MaxFileSize+1)}
	err := m.store.Put(ctx, key, counter)
	if err == nil && counter.n > MaxFileSize {
		m.store.Remove(ctx, key)
		res.Err = &model.FileTooLargeError{Name: f.Name, Size: counter.n}
		return res
	}
	if err != nil {
		log.WithFields(log.Fields{"instance": inst.ID, "file": f.Name}).WithError(err).Warn("attachments.upload")
		res.Err = &model.UploadFailedError{Name: f.Name, Cause: err}
		return res
	}
	res.URL = m.store.PublicURL(key)
	return res
}

// Purge removes every object under the instance folder. Errors are logged
// and returned for information only.
func (m *Manager) Purge(ctx context.Context, inst model.Instance) error {
	fields := log.Fields{"instance": inst.ID, "folder": inst.Folder()}
	keys, err := m.store.List(ctx, inst.Folder())
	if err != nil {
		log.WithFields(fields).WithError(err).Error("attachments.purge.list")
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	err = m.store.Remove(ctx, keys...)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("attachments.purge.remove")
		return err
	}
	log.WithFields(fields).Debugf("attachments.purge: removed %d objects", len(keys))
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
