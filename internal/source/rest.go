package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// restClient talks to the school REST backend. Endpoints identify the caller
// through an authCode query parameter and answer {success, data|message}
// envelopes. Any non-2xx status or success=false counts as a source failure.
type restClient struct {
	baseURL    string
	authCode   string
	httpClient *http.Client
}

func newRESTClient(baseURL, authCode string) *restClient {
	return &restClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		authCode: authCode,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// getJSON performs a GET against path, unwraps the response envelope, and
// decodes the data payload into out.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("authCode", c.authCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("backend reported failure: %s", env.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// rangeQuery encodes a time range the way the backend expects it.
func rangeQuery(r model.TimeRange) url.Values {
	q := url.Values{}
	q.Set("startDate", r.Start.Format(time.RFC3339))
	q.Set("endDate", r.End.Format(time.RFC3339))
	return q
}
