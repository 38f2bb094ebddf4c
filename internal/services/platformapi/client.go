package platformapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// HTTPDoer describes the HTTP client used for uploads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Upload describes one render file sent to a platform.
type Upload struct {
	CampaignID string
	Name       string
	Path       string
	Format     string
}

// Receipt is the platform's acknowledgement of an upload.
type Receipt struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client posts multipart uploads to <base>/platforms/<id>/uploads.
type Client struct {
	baseURL  string
	tokens   map[string]string
	client   HTTPDoer
	settings breakerSettings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

type breakerSettings struct {
	failureThreshold uint32
	cooldown         time.Duration
}

// NewClient builds a platform client from configuration.
func NewClient(cfg config.PlatformAPI) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return NewHTTPClient(cfg, &http.Client{Timeout: timeout})
}

// NewHTTPClient builds a platform client around a caller-supplied HTTP client.
func NewHTTPClient(cfg config.PlatformAPI, client HTTPDoer) *Client {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		tokens:   cfg.Tokens,
		client:   client,
		settings: breakerSettings{failureThreshold: uint32(threshold), cooldown: cooldown},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Upload sends a file to the platform and returns its receipt.
func (c *Client) Upload(ctx context.Context, platform string, upload Upload) (Receipt, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if c.baseURL == "" {
		return Receipt{}, services.Wrap(services.ErrConfiguration, "platformapi", "upload", "platform_api.base_url is not set", nil)
	}
	token := strings.TrimSpace(c.tokens[platform])
	if token == "" {
		return Receipt{}, services.Wrap(services.ErrConfiguration, "platformapi", "upload", fmt.Sprintf("no token configured for %s", platform), nil)
	}

	result, err := c.breaker(platform).Execute(func() (interface{}, error) {
		return c.post(ctx, platform, token, upload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Receipt{}, services.Wrap(services.ErrTransient, "platformapi", "upload", fmt.Sprintf("%s uploads suspended", platform), err)
		}
		return Receipt{}, err
	}
	return result.(Receipt), nil
}

// State reports the breaker state for a platform.
func (c *Client) State(platform string) gobreaker.State {
	return c.breaker(strings.ToLower(strings.TrimSpace(platform))).State()
}

func (c *Client) breaker(platform string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[platform]; ok {
		return cb
	}
	threshold := c.settings.failureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "platform:" + platform,
		MaxRequests: 1,
		Timeout:     c.settings.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, services.ErrValidation)
		},
	})
	c.breakers[platform] = cb
	return cb
}

func (c *Client) post(ctx context.Context, platform, token string, upload Upload) (Receipt, error) {
	file, err := os.Open(upload.Path)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrValidation, "platformapi", "upload", "open render file", err)
	}
	defer file.Close()

	body, contentType := multipartBody(file, upload)
	endpoint := fmt.Sprintf("%s/platforms/%s/uploads", c.baseURL, url.PathEscape(platform))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Receipt{}, fmt.Errorf("build platform upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrTransient, "platformapi", "upload", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := fmt.Sprintf("%s returned %d: %s", platform, resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Receipt{}, services.Wrap(services.ErrValidation, "platformapi", "upload", message, nil)
		}
		return Receipt{}, services.Wrap(services.ErrTransient, "platformapi", "upload", message, nil)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil && !errors.Is(err, io.EOF) {
		return Receipt{}, services.Wrap(services.ErrTransient, "platformapi", "upload", "decode receipt", err)
	}
	return receipt, nil
}

// multipartBody streams the upload through a pipe so large renders are never
// buffered in memory.
func multipartBody(file *os.File, upload Upload) (io.Reader, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			for key, value := range map[string]string{
				"campaign_id": upload.CampaignID,
				"name":        upload.Name,
				"format":      upload.Format,
			} {
				if value == "" {
					continue
				}
				if err := writer.WriteField(key, value); err != nil {
					return err
				}
			}
			name := upload.Name
			if name == "" {
				name = filepath.Base(upload.Path)
			}
			part, err := writer.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, file); err != nil {
				return err
			}
			return writer.Close()
		}()
		pw.CloseWithError(err)
	}()
	return pr, writer.FormDataContentType()
}
