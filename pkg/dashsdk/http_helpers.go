package dashsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request. A non-empty token is sent as a bearer
// credential, and a 401 answer to such a request raises Invalidations while
// the token is still current.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path, token string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if token != "" && resp.StatusCode == http.StatusUnauthorized {
		c.invalidate(token)
	}

	return resp, nil
}

// invalidate raises Invalidations for a rejected token, unless the token has
// already been replaced.
func (c *SDKClient) invalidate(token string) {
	if c.Invalidations == nil {
		return
	}
	if c.IsCurrent != nil && !c.IsCurrent(token) {
		return
	}
	c.Invalidations.Raise()
}

// decodeJSON decodes a JSON response into the target interface.
// Returns an *APIError if the response indicates an error.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return err
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// checkStatus returns a typed error if the response is not 2xx.
func checkStatus(resp *http.Response) error {
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	return parseErrorResponse(resp, bodyBytes)
}
