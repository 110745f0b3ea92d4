// Package cloudinary is a small client for the Cloudinary upload API and
// its signed delivery URLs. Product images and deliverable files live
// there; the store only keeps the returned URLs.
package cloudinary

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const uploadEndpoint = "https://api.cloudinary.com/v1_1"

// Config holds the Cloudinary account credentials.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// BaseURL overrides the upload endpoint, used by tests.
	BaseURL string
}

// Client talks to the Cloudinary API.
type Client struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new Cloudinary client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = uploadEndpoint
	}
	return &Client{
		cloudName: cfg.CloudName,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		now: time.Now,
	}
}

// UploadResult is the subset of the upload response the store keeps.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload sends a file to Cloudinary with a signed request and returns its
// public URL. resourceType is "image", "raw", or "auto".
func (c *Client) Upload(r io.Reader, filename, folder, resourceType string) (*UploadResult, error) {
	if resourceType == "" {
		resourceType = "auto"
	}
	timestamp := fmt.Sprintf("%d", c.now().Unix())

	var formBuf bytes.Buffer
	writer := multipart.NewWriter(&formBuf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload payload: %w", err)
	}

	// Cloudinary signs the sorted parameter string plus the API secret.
	payload := fmt.Sprintf("folder=%s&timestamp=%s%s", folder, timestamp, c.apiSecret)
	signature := fmt.Sprintf("%x", sha1.Sum([]byte(payload)))

	fields := map[string]string{
		"api_key":   c.apiKey,
		"timestamp": timestamp,
		"folder":    folder,
		"signature": signature,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/upload", c.baseURL, c.cloudName, resourceType)
	req, err := http.NewRequest(http.MethodPost, url, &formBuf)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob host returned status %d", resp.StatusCode)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &result, nil
}

// SignedURL converts a plain delivery URL into a signed one so access
// restrictions on the asset do not block the download proxy. URLs that do
// not look like Cloudinary delivery URLs are returned unchanged.
func (c *Client) SignedURL(deliveryURL string) string {
	prefix, rest, found := strings.Cut(deliveryURL, "/upload/")
	if !found {
		return deliveryURL
	}
	sum := sha1.Sum([]byte(rest + c.apiSecret))
	sig := base64.RawURLEncoding.EncodeToString(sum[:])[:8]
	return prefix + "/upload/s--" + sig + "--/" + rest
}

// Fetch downloads an asset and returns its body, length, and content type.
// The caller owns the returned reader.
func (c *Client) Fetch(url string) (io.ReadCloser, int64, string, error) {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, 0, "", fmt.Errorf("asset fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, "", fmt.Errorf("blob host returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, resp.Header.Get("Content-Type"), nil
}
