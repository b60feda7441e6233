package jsonrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const defaultClientTimeout = 10 * time.Second

// Client calls the JSON RPC methods of a bridge node
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

// NewClient creates a client of the node listening on addr (host:port or an http url)
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}

	return &Client{
		url:  addr,
		http: &http.Client{Timeout: defaultClientTimeout},
	}
}

// Call invokes method with positional params and decodes the result into out
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	req := Request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  make([]jsoniter.RawMessage, len(params)),
	}

	for i, param := range params {
		raw, err := json.Marshal(param)
		if err != nil {
			return fmt.Errorf("failed to encode param %d: %w", i, err)
		}

		req.Params[i] = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxRequestBodySize))
	if err != nil {
		return err
	}

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s: %s", httpResp.Status, strings.TrimSpace(string(raw)))
	}

	var resp struct {
		Result jsoniter.RawMessage `json:"result"`
		Error  *ObjectError        `json:"error"`
	}

	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}

	return json.Unmarshal(resp.Result, out)
}
