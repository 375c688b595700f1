// Package storage сохраняет результирующие изображения на локальный том
// и отдает их публичные URL (том раздается отдельным static-сервером).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Регистрация PNG-декодера для image.Decode
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// ErrStoreFailed ошибка при сохранении файла.
var ErrStoreFailed = errors.New("image store failed")

// Store durable-хранилище изображений результата.
type Store interface {
	// Save записывает данные и возвращает публичный URL.
	Save(ctx context.Context, data []byte, fileName string) (string, error)
	// SaveThumbnail уменьшает изображение до настроенной ширины и сохраняет.
	SaveThumbnail(ctx context.Context, data []byte, fileName string) (string, error)
	// Remove удаляет файл по его публичному URL. Отсутствующий файл — не ошибка.
	Remove(ctx context.Context, publicURL string) error
}

type localStore struct {
	savePath   string
	baseURL    string
	thumbWidth int
	logger     *zap.Logger
}

// NewLocalStore создает Store поверх локальной директории.
func NewLocalStore(savePath, publicBaseURL string, thumbWidth int, logger *zap.Logger) (Store, error) {
	if savePath == "" {
		return nil, errors.New("image save path (IMAGE_SAVE_PATH) is not configured")
	}
	if publicBaseURL == "" {
		return nil, errors.New("image public base URL (IMAGE_PUBLIC_BASE_URL) is not configured")
	}
	if thumbWidth <= 0 {
		thumbWidth = 512
	}
	return &localStore{
		savePath:   savePath,
		baseURL:    strings.TrimSuffix(publicBaseURL, "/"),
		thumbWidth: thumbWidth,
		logger:     logger.Named("LocalStore"),
	}, nil
}

// ExtensionFromContentType возвращает расширение файла по content type.
func ExtensionFromContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/jpeg", "image/jpg":
		return "jpg"
	default:
		return "jpg"
	}
}

func (s *localStore) Save(ctx context.Context, data []byte, fileName string) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("%w: file name is required but empty", ErrStoreFailed)
	}

	filePath := filepath.Join(s.savePath, fileName)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		s.logger.Error("Failed to save image to file", zap.String("path", filePath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	publicURL := s.publicURL(fileName)
	s.logger.Info("Image saved", zap.String("path", filePath), zap.String("url", publicURL), zap.Int("size_bytes", len(data)))
	return publicURL, nil
}

// SaveThumbnail уменьшает изображение до thumbWidth по ширине (пропорции
// сохраняются) и сохраняет как JPEG. Используется для миниатюры проекта.
func (s *localStore) SaveThumbnail(ctx context.Context, data []byte, fileName string) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode image for thumbnail: %v", ErrStoreFailed, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > s.thumbWidth {
		h = h * s.thumbWidth / w
		w = s.thumbWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("%w: failed to encode thumbnail: %v", ErrStoreFailed, err)
	}

	return s.Save(ctx, buf.Bytes(), fileName)
}

// Remove удаляет файл по публичному URL. Чужие URL (не наш base) игнорируются.
func (s *localStore) Remove(ctx context.Context, publicURL string) error {
	if publicURL == "" || !strings.HasPrefix(publicURL, s.baseURL) {
		return nil
	}

	u, err := url.Parse(publicURL)
	if err != nil {
		return nil
	}
	fileName := path.Base(u.Path)
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil
	}

	filePath := filepath.Join(s.savePath, fileName)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove stored image", zap.String("path", filePath), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	return nil
}

func (s *localStore) publicURL(fileName string) string {
	u := s.baseURL + "/" + fileName
	if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		// По умолчанию https, если протокол не указан
		u = "https://" + u
	}
	return u
}
