// Package provider — HTTP-клиент inpainting-провайдера. Принимает исходное
// изображение, маску и инструкцию, возвращает байты результата.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrProviderFailed ошибка вызова inpainting-провайдера.
var ErrProviderFailed = errors.New("inpainting provider request failed")

// EditRequest запрос на редактирование изображения.
type EditRequest struct {
	// SourceImageURL публичный URL исходного изображения.
	SourceImageURL string
	// MaskPNG PNG-маска: черный фон, белые зоны редактирования.
	MaskPNG []byte
	// Instruction текстовая инструкция для модели.
	Instruction string
}

// EditResult результат редактирования: байты изображения и его content type.
type EditResult struct {
	Data        []byte
	ContentType string
}

// Client клиент inpainting-провайдера.
type Client interface {
	EditImage(ctx context.Context, req EditRequest) (*EditResult, error)
}

// Compile-time check to ensure httpClient implements Client
var _ Client = (*httpClient)(nil)

type httpClient struct {
	baseURL        string
	apiKey         string
	inferenceSteps int
	client         *http.Client
	logger         *zap.Logger
}

// NewHTTPClient создает клиент провайдера.
func NewHTTPClient(baseURL, apiKey string, inferenceSteps int, timeout time.Duration, logger *zap.Logger) (Client, error) {
	if baseURL == "" {
		return nil, errors.New("provider base URL (PROVIDER_BASE_URL) is not configured")
	}
	if apiKey == "" {
		return nil, errors.New("provider API key (PROVIDER_API_KEY) is not configured")
	}
	if inferenceSteps <= 0 {
		inferenceSteps = 28
	}
	return &httpClient{
		baseURL:        baseURL,
		apiKey:         apiKey,
		inferenceSteps: inferenceSteps,
		client:         &http.Client{Timeout: timeout},
		logger:         logger.Named("ProviderClient"),
	}, nil
}

// Тело запроса к /v1/images/edit. Маска передается data-URI строкой.
type editAPIRequest struct {
	ImageURL          string `json:"image_url"`
	Mask              string `json:"mask"`
	Prompt            string `json:"prompt"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	OutputFormat      string `json:"output_format"`
}

type editAPIResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Detail string `json:"detail,omitempty"`
}

// EditImage выполняет inpainting: отправляет задание провайдеру и скачивает
// готовое изображение по URL из ответа.
func (c *httpClient) EditImage(ctx context.Context, req EditRequest) (*EditResult, error) {
	if req.SourceImageURL == "" {
		return nil, fmt.Errorf("%w: source image URL is empty", ErrProviderFailed)
	}
	if len(req.MaskPNG) == 0 {
		return nil, fmt.Errorf("%w: mask is empty", ErrProviderFailed)
	}
	if req.Instruction == "" {
		return nil, fmt.Errorf("%w: instruction is empty", ErrProviderFailed)
	}

	apiReq := editAPIRequest{
		ImageURL:          req.SourceImageURL,
		Mask:              "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.MaskPNG),
		Prompt:            req.Instruction,
		NumInferenceSteps: c.inferenceSteps,
		OutputFormat:      "jpeg",
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/edit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("Provider request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrProviderFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Provider returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderFailed, resp.StatusCode, string(respBody))
	}

	var apiResp editAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrProviderFailed, err)
	}
	if len(apiResp.Images) == 0 || apiResp.Images[0].URL == "" {
		return nil, fmt.Errorf("%w: response contains no images", ErrProviderFailed)
	}

	c.logger.Info("Provider edit completed",
		zap.Duration("duration", time.Since(start)),
		zap.String("content_type", apiResp.Images[0].ContentType))

	data, contentType, err := c.download(ctx, apiResp.Images[0].URL)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = apiResp.Images[0].ContentType
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return &EditResult{Data: data, ContentType: contentType}, nil
}

// download скачивает готовое изображение по временному URL провайдера.
func (c *httpClient) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to download result image: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: result image download returned status %d", ErrProviderFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read result image: %v", ErrProviderFailed, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: result image is empty", ErrProviderFailed)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
