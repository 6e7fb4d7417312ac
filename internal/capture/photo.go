// Package capture описывает возможности устройства: выбор фото и геолокацию.
// Обе операции одноразовые и асинхронные, повтор делает только пользователь.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrCancelled = errors.New("выбор фото отменён")
	ErrNotImage  = errors.New("файл не является изображением")
	ErrTooLarge  = errors.New("файл слишком большой")
)

// DefaultMaxPhotoBytes - ограничение размера фото по умолчанию
const DefaultMaxPhotoBytes = 15 << 20

type Photo struct {
	Name        string
	ContentType string
	Data        []byte
	// Preview - data URI для показа без обращения к сети
	Preview string
}

func NewPhoto(name string, data []byte) (*Photo, error) {
	if len(data) == 0 {
		return nil, ErrCancelled
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%s (%s): %w", name, contentType, ErrNotImage)
	}
	return &Photo{
		Name:        filepath.Base(name),
		ContentType: contentType,
		Data:        data,
		Preview:     "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Ext - расширение исходного файла без точки, при отсутствии берётся из типа содержимого
func (p *Photo) Ext() string {
	if ext := strings.TrimPrefix(filepath.Ext(p.Name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	switch p.ContentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

type Picker interface {
	PickImage(ctx context.Context) (*Photo, error)
}

type PickerFunc func(ctx context.Context) (*Photo, error)

func (f PickerFunc) PickImage(ctx context.Context) (*Photo, error) {
	return f(ctx)
}

// FormPicker берёт единственный файл из multipart-формы запроса
type FormPicker struct {
	Request  *http.Request
	Field    string
	MaxBytes int64
}

func (p FormPicker) PickImage(ctx context.Context) (*Photo, error) {
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}

	file, header, err := p.Request.FormFile(p.Field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, ErrCancelled
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("чтение формы: %w", err)
	}
	defer file.Close()

	if header.Size > maxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("чтение файла: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return NewPhoto(header.Filename, data)
}
