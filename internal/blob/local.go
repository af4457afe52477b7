package blob

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// LocalStore keeps documents as files under a root directory.
type LocalStore struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

func NewLocalStore(root string, maxBytes int64, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		logger.Error("blob.local.mkdir.failed", "root", abs, "err", err)
		return nil, err
	}
	return &LocalStore{root: abs, maxBytes: maxBytes, logger: logger}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return entity.Document{}, err
	}
	p, err := s.path(key)
	if err != nil {
		return entity.Document{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entity.Document{}, notFound("get", key, err)
		}
		return entity.Document{}, classify(ctx, "get", key, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("blob.local.close.failed", "key", key, "err", err)
		}
	}(f)

	info, err := f.Stat()
	if err != nil {
		return entity.Document{}, classify(ctx, "stat", key, err)
	}
	data, err := readLimited(f, s.maxBytes)
	if err != nil {
		return entity.Document{}, err
	}
	return entity.Document{
		Key:         key,
		ContentType: constants.ContentTypeForExt(filepath.Ext(p)),
		Size:        int64(len(data)),
		UploadedAt:  info.ModTime().UTC(),
		Data:        data,
	}, nil
}

// Put writes atomically through a temp file. contentType is implied by the key's extension.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return unavailable("put", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return unavailable("put", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return unavailable("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return unavailable("put", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return unavailable("put", key, err)
	}
	s.logger.Debug("blob.local.put.ok", "key", key, "bytes", len(data))
	return nil
}

// Exists reports whether key is already staged.
func (s *LocalStore) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
