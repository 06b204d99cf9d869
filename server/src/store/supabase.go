package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bgocumlu/juke/server/src/logger"
)

const requestTimeout = 30 * time.Second

var ErrNotFound = errors.New("object not found")

// Supabase talks to the Supabase Storage REST surface of one bucket.
// When a CDN domain is configured, PublicURL swaps the storage host for
// it while keeping the bucket/key path.
type Supabase struct {
	baseURL   string
	apiKey    string
	bucket    string
	cdnDomain string
	client    *http.Client
}

type SupabaseConfig struct {
	BaseURL   string
	APIKey    string
	Bucket    string
	CDNDomain string
}

func NewSupabase(config SupabaseConfig) (*Supabase, error) {
	if config.BaseURL == "" || config.APIKey == "" {
		return nil, errors.New("supabase url and key are required")
	}
	if config.Bucket == "" {
		return nil, errors.New("supabase bucket is required")
	}

	return &Supabase{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		apiKey:    config.APIKey,
		bucket:    config.Bucket,
		cdnDomain: strings.TrimRight(config.CDNDomain, "/"),
		client:    &http.Client{Timeout: requestTimeout},
	}, nil
}

func (supabase *Supabase) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", supabase.baseURL, supabase.bucket, key)
}

func (supabase *Supabase) authorize(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+supabase.apiKey)
	request.Header.Set("apikey", supabase.apiKey)
}

func (supabase *Supabase) Exists(ctx context.Context, key string) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, supabase.objectURL(key), nil)
	if err != nil {
		return false, err
	}
	supabase.authorize(request)

	response, err := supabase.client.Do(request)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", key, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
		return true, nil
	case response.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("probe %s: unexpected status %d", key, response.StatusCode)
	}
}

func (supabase *Supabase) Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, supabase.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	supabase.authorize(request)
	request.Header.Set("Content-Type", contentType)
	if upsert {
		request.Header.Set("x-upsert", "true")
	}

	response, err := supabase.client.Do(request)
	if err != nil {
		return false, fmt.Errorf("upload %s: %w", key, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return true, nil
	}

	body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	if isDuplicate(response.StatusCode, string(body)) {
		logger.Debugw("Upload hit existing object", "key", key)
		return false, nil
	}

	return false, fmt.Errorf("upload %s: status %d: %s", key, response.StatusCode, string(body))
}

// The storage API reports duplicates either as 409 or with an error
// body mentioning the existing resource.
func isDuplicate(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate")
}

func (supabase *Supabase) Info(ctx context.Context, key string) (*ObjectInfo, error) {
	url := fmt.Sprintf("%s/storage/v1/object/info/%s/%s", supabase.baseURL, supabase.bucket, key)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	supabase.authorize(request)

	response, err := supabase.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("info %s: %w", key, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info %s: unexpected status %d", key, response.StatusCode)
	}

	var info ObjectInfo
	if err := json.NewDecoder(response.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("info %s: decode: %w", key, err)
	}
	if info.Name == "" {
		info.Name = key
	}

	return &info, nil
}

func (supabase *Supabase) PublicURL(key string) string {
	if supabase.cdnDomain != "" {
		return fmt.Sprintf("%s/%s/%s", supabase.cdnDomain, supabase.bucket, key)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", supabase.baseURL, supabase.bucket, key)
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type listEntry struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Metadata  struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

func (supabase *Supabase) List(ctx context.Context, limit int, offset int) ([]ObjectInfo, error) {
	body, err := json.Marshal(listRequest{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/storage/v1/object/list/%s", supabase.baseURL, supabase.bucket)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	supabase.authorize(request)
	request.Header.Set("Content-Type", "application/json")

	response, err := supabase.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list bucket: unexpected status %d", response.StatusCode)
	}

	var entries []listEntry
	if err := json.NewDecoder(response.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("list bucket: decode: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:      entry.Name,
			Size:      entry.Metadata.Size,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
		})
	}

	return objects, nil
}

func (supabase *Supabase) Remove(ctx context.Context, key string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, supabase.objectURL(key), nil)
	if err != nil {
		return err
	}
	supabase.authorize(request)

	response, err := supabase.client.Do(request)
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("remove %s: unexpected status %d", key, response.StatusCode)
	}

	return nil
}
