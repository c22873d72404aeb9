// Package filecache serves the static files an MTConnect agent ships
// alongside its protocol responses (stylesheets, schemas, a styled HTML
// landing page): an in-memory cache keyed by request path, with a
// lazily-built gzip companion computed once per file and reused by every
// subsequent request that accepts it.
package filecache

import (
	"bytes"
	"errors"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrNotFound is returned by Open when path isn't known to the cache.
var ErrNotFound = errors.New("filecache: not found")

// entry holds one cached file's bytes, its content type, and a
// once-computed gzip companion. path is the backing file on disk, if
// any — empty for content registered directly via Put — and is used to
// detect on-disk changes and invalidate the entry (and its gzip
// companion) on the next hit.
type entry struct {
	data    []byte
	modTime time.Time
	ctype   string
	path    string

	gzipOnce sync.Once
	gzipData []byte
	gzipErr  error
}

func (e *entry) gzip() ([]byte, error) {
	e.gzipOnce.Do(func() {
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			e.gzipErr = err
			return
		}
		if _, err := w.Write(e.data); err != nil {
			e.gzipErr = err
			return
		}
		if err := w.Close(); err != nil {
			e.gzipErr = err
			return
		}
		e.gzipData = buf.Bytes()
	})
	return e.gzipData, e.gzipErr
}

// Cache maps a request path (already stripped of any routing prefix) to
// cached file content, with one default document name per directory
// prefix (e.g. "/" resolves to index.html).
type Cache struct {
	mu              sync.RWMutex
	entries         map[string]*entry
	defaultDocument string

	// minCompressedSize gates OpenGzip: files smaller than this are never
	// worth the compression round trip, so OpenGzip returns the
	// uncompressed form unchanged. 0 disables the gate.
	minCompressedSize int64
}

// New builds an empty cache. defaultDocument is served for any path that
// resolves to a directory (commonly "index.html"); pass "" to disable
// default-document resolution.
func New(defaultDocument string) *Cache {
	return &Cache{entries: make(map[string]*entry), defaultDocument: defaultDocument}
}

// SetMinCompressedSize configures the size threshold below which OpenGzip
// skips compression and serves the file as-is, matching the agent's
// minCompressFileSize option.
func (c *Cache) SetMinCompressedSize(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minCompressedSize = n
}

// LoadDir walks root and registers every regular file under urlPrefix,
// keyed by its path relative to root. Every file is read fully into
// memory up front, whatever its size; there is no size cut-off and no
// serving by on-disk path. This is appropriate for the handful of schema/
// stylesheet/static files an agent ships, not for arbitrary user content.
func (c *Cache) LoadDir(root, urlPrefix string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		urlPath := path.Join(urlPrefix, filepath.ToSlash(rel))
		c.mu.Lock()
		c.entries[normalize(urlPath)] = &entry{
			data:    data,
			modTime: info.ModTime(),
			ctype:   contentType(urlPath),
			path:    p,
		}
		c.mu.Unlock()
		return nil
	})
}

// Put registers content directly, bypassing the filesystem — used for
// generated documents (a schema bundled into the binary, a rendered
// landing page) as well as tests. Content registered this way has no
// backing file, so it is never subject to mtime invalidation.
func (c *Cache) Put(urlPath string, data []byte, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalize(urlPath)] = &entry{
		data:    data,
		modTime: modTime,
		ctype:   contentType(urlPath),
	}
}

// lookup resolves urlPath to its entry, applying default-document
// substitution, and reloads it from disk if the backing file (if any) has
// a newer mtime than what's cached — invalidating any gzip companion too.
func (c *Cache) lookup(urlPath string) (*entry, bool) {
	key := normalize(urlPath)
	c.mu.RLock()
	e, ok := c.entries[key]
	if !ok && c.defaultDocument != "" && strings.HasSuffix(key, "/") {
		key += c.defaultDocument
		e, ok = c.entries[key]
	}
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.path == "" {
		return e, true
	}
	info, err := os.Stat(e.path)
	if err != nil || !info.ModTime().After(e.modTime) {
		return e, true
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return e, true
	}
	fresh := &entry{data: data, modTime: info.ModTime(), ctype: e.ctype, path: e.path}
	c.mu.Lock()
	c.entries[key] = fresh
	c.mu.Unlock()
	return fresh, true
}

// Open resolves urlPath (applying default-document substitution for a
// trailing slash) and returns its bytes, content type, and modification
// time.
func (c *Cache) Open(urlPath string) (data []byte, ctype string, modTime time.Time, err error) {
	e, ok := c.lookup(urlPath)
	if !ok {
		return nil, "", time.Time{}, ErrNotFound
	}
	return e.data, e.ctype, e.modTime, nil
}

// OpenGzip is like Open but returns the gzip-compressed form, computing it
// once on first request and reusing it for every subsequent caller —
// concurrent first requests for the same file coalesce onto one compress
// call rather than each paying the cost. Files smaller than the
// configured minimum are returned uncompressed.
func (c *Cache) OpenGzip(urlPath string) (data []byte, ctype string, modTime time.Time, err error) {
	e, ok := c.lookup(urlPath)
	if !ok {
		return nil, "", time.Time{}, ErrNotFound
	}
	c.mu.RLock()
	min := c.minCompressedSize
	c.mu.RUnlock()
	if min > 0 && int64(len(e.data)) < min {
		return e.data, e.ctype, e.modTime, nil
	}
	gz, err := e.gzip()
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return gz, e.ctype, e.modTime, nil
}

func normalize(urlPath string) string {
	if urlPath == "" {
		return "/"
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	return urlPath
}

func contentType(urlPath string) string {
	ext := filepath.Ext(urlPath)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".xsd":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
