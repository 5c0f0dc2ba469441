package httpclient

import (
	"encoding/json"
	"net/http"
)

// Client wraps http.Client with helpers for authenticated JSON requests.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client.
func New(baseURL, bearer string) *Client {
	return &Client{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{}}
}

// NewRequest builds a request against the base URL with the bearer token set.
func (c *Client) NewRequest(method, path string) (*http.Request, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	return req, nil
}

// GetJSON issues a GET request and decodes the JSON response.
func (c *Client) GetJSON(path string, out any) (*http.Response, error) {
	req, err := c.NewRequest(http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resp, err
	}
	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
