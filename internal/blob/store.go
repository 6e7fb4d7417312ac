// Package blob хранит загруженные фотографии и отдаёт на них публичные ссылки.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"fieldTasks/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrExists      = errors.New("объект уже существует")
	ErrInvalidName = errors.New("недопустимое имя объекта")
)

type UploadOptions struct {
	Overwrite   bool
	ContentType string
}

type Store struct {
	fs      afero.Fs
	bucket  string
	baseURL string
}

func New(fs afero.Fs, bucket, publicBaseURL string) (*Store, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) {
		return nil, fmt.Errorf("бакет %q: %w", bucket, ErrInvalidName)
	}
	if _, err := url.Parse(publicBaseURL); err != nil {
		return nil, fmt.Errorf("разбор публичного адреса: %w", err)
	}
	if err := fs.MkdirAll(bucket, 0o755); err != nil {
		return nil, fmt.Errorf("создание бакета: %w", err)
	}
	return &Store{
		fs:      fs,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// NewOnDisk - хранилище в каталоге root на локальном диске
func NewOnDisk(root, bucket, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога хранилища: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), root), bucket, publicBaseURL)
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) Upload(ctx context.Context, name string, data []byte, opts UploadOptions) error {
	start := time.Now()

	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("загрузка %s: %w", name, err)
	}

	target := path.Join(s.bucket, name)
	if !opts.Overwrite {
		exists, err := afero.Exists(s.fs, target)
		if err != nil {
			return fmt.Errorf("проверка объекта: %w", err)
		}
		if exists {
			return ErrExists
		}
	}

	// пишем во временный файл и переименовываем, чтобы не отдавать недописанный объект
	tmp := path.Join(s.bucket, ".upload-"+uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		logger.Error("Blob: Не удалось записать объект", err, zap.String("name", name))
		return fmt.Errorf("запись объекта: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		logger.Error("Blob: Не удалось сохранить объект", err, zap.String("name", name))
		return fmt.Errorf("сохранение объекта: %w", err)
	}

	logger.Info("Blob: Объект загружен",
		zap.String("name", name),
		zap.String("content_type", opts.ContentType),
		zap.Int("bytes", len(data)),
		zap.Duration("ms", time.Since(start)))
	return nil
}

// PublicURL только вычисляет адрес, существование объекта не проверяется
func (s *Store) PublicURL(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return s.baseURL + "/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(name), nil
}

func (s *Store) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, path.Join(s.bucket, name))
}

// Handler раздаёт содержимое бакета, монтируется под префикс публичного адреса
func (s *Store) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(s.fs).Dir(s.bucket))
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
