package storefront

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fileStore persists one JSON document. An empty path keeps state in
// memory only.
type fileStore struct {
	path string
}

// load decodes the file into v. A missing file leaves v untouched.
func (s fileStore) load(v interface{}) error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", s.path)
	}
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, v), "decode %s", s.path)
}

// save writes v through a temp file so a crash never leaves a torn file.
func (s fileStore) save(v interface{}) error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), s.path), "replace %s", s.path)
}
