package session

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Регистрация декодеров для image.DecodeConfig
	_ "image/png"
	"net/http"
	"time"

	"go.uber.org/zap"

	_ "golang.org/x/image/webp" // Провайдеры иногда отдают webp
)

// Compile-time check to ensure httpSizeLoader implements ImageSizeLoader
var _ ImageSizeLoader = (*httpSizeLoader)(nil)

// httpSizeLoader читает заголовок изображения по HTTP и возвращает его
// размеры. Тело скачивается ровно настолько, насколько нужно декодеру.
type httpSizeLoader struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSizeLoader создает загрузчик размеров изображений.
func NewHTTPSizeLoader(timeout time.Duration, logger *zap.Logger) ImageSizeLoader {
	return &httpSizeLoader{
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("ImageSizeLoader"),
	}
}

func (l *httpSizeLoader) LoadSize(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch image '%s': %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("image fetch '%s' returned status %d", url, resp.StatusCode)
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image '%s': %w", url, err)
	}

	l.logger.Debug("Image size loaded",
		zap.String("url", url),
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return cfg.Width, cfg.Height, nil
}
