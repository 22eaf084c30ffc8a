package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const clientTimeout = 55 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// doJSON sends body (nil for GET) and decodes a 2xx response into out.
func doJSON(ctx context.Context, client *http.Client, provider, method, endpoint string, headers map[string]string, body any, out any) error {
	if client == nil {
		return fmt.Errorf("%s: http client is nil", strings.ToLower(provider))
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s: %w", strings.ToLower(provider), ErrTimeout)
		}
		return fmt.Errorf("%s: %w", strings.ToLower(provider), withoutURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s: %w", strings.ToLower(provider), ErrTimeout)
		}
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Body: "invalid response: " + err.Error()}
	}
	return nil
}

// withoutURL drops the request URL a *url.Error carries, since provider URLs
// may hold credentials and error text reaches chat replies.
func withoutURL(err error) error {
	var uErr *url.Error
	if errors.As(err, &uErr) && uErr.Err != nil {
		return uErr.Err
	}
	return err
}
