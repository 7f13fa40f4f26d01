package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	metaFileName = "meta.json"
	bodyFileName = "body.ics"
)

// validators are the HTTP cache validators remembered per feed URL.
type validators struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
}

// feedCache is the on-disk copy of one feed: <root>/<hash>/{meta.json,body.ics}.
type feedCache struct {
	dir string
}

func newFeedCache(root, feedURL string) feedCache {
	sum := sha256.Sum256([]byte(feedURL))
	return feedCache{dir: filepath.Join(root, hex.EncodeToString(sum[:8]))}
}

// load returns whatever is cached; a missing or corrupt entry yields zero
// values rather than an error, since the cache is only an optimization.
func (c feedCache) load() (validators, []byte) {
	var v validators
	body, err := os.ReadFile(filepath.Join(c.dir, bodyFileName))
	if err != nil || len(body) == 0 {
		return v, nil
	}
	if data, err := os.ReadFile(filepath.Join(c.dir, metaFileName)); err == nil {
		_ = json.Unmarshal(data, &v)
	}
	return v, body
}

// store writes the body before the validators so the validators never
// describe a body that is not on disk. Each file is replaced by rename, so a
// concurrent load sees either the old or the new copy, never a partial one.
func (c feedCache) store(v validators, body []byte) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := c.replace(bodyFileName, body); err != nil {
		return fmt.Errorf("write cached body: %w", err)
	}
	v.StoredAt = time.Now().UTC()
	data, err := json.MarshalIndent(&v, "", "  ")
	if err != nil {
		return err
	}
	if err := c.replace(metaFileName, data); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}
	return nil
}

func (c feedCache) replace(name string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(c.dir, name))
}
