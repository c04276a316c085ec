package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPRecordSource fetches record tables from the external record service
// as JSON: GET {base}/records/{subjectKey} -> [{"name": ..., "score": ...}].
type HTTPRecordSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRecordSource(baseURL string, timeout time.Duration) *HTTPRecordSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRecordSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPRecordSource) Fetch(ctx context.Context, subjectKey string) ([]Record, error) {
	endpoint := fmt.Sprintf("%s/records/%s", s.baseURL, url.PathEscape(subjectKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create record request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "droprelay/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch record table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("record source returned status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode record table: %w", err)
	}
	return records, nil
}
