package checkpoint

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FileStore keeps one file per key under dataDir. The first line of each
// file is the md5 of the rest, used to detect truncated or edited
// checkpoints.
type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "./checkpoints"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (fs *FileStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid checkpoint key %q", key)
	}
	return filepath.Join(fs.dataDir, clean+".json"), nil
}

func (fs *FileStore) Put(_ context.Context, key string, blob []byte) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	if _, err := os.Stat(path); err == nil {
		return ErrExists
	}

	sum := md5.Sum(blob)
	data := make([]byte, 0, 2*md5.Size+1+len(blob))
	data = hex.AppendEncode(data, sum[:])
	data = append(data, '\n')
	data = append(data, blob...)
	if err := writeTemp(path, data, linkNoReplace); err != nil {
		return err
	}
	log.Debugf("FileStore.Put: key=%s bytes=%d", key, len(blob))
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	want, blob, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: %s has no checksum", ErrCorrupt, key)
	}
	sum := md5.Sum(blob)
	if hex.EncodeToString(sum[:]) != string(want) {
		log.Warnf("FileStore.Get: checksum mismatch for key=%s", key)
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupt, key)
	}
	return blob, nil
}

func (fs *FileStore) Close() error { return nil }

// linkNoReplace publishes tmp at path and fails if path exists.
func linkNoReplace(tmp, path string) error {
	if err := os.Link(tmp, path); err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return fmt.Errorf("link %s: %w", path, err)
	}
	return nil
}

// writeTemp writes data to a temp file next to path and publishes it with
// place, so readers never see a partial file.
func writeTemp(path string, data []byte, place func(tmp, path string) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return place(tmpName, path)
}
