package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InvokeError is a failure reported by the device-control service for one
// entity. The dispatcher folds it into the tool-call result; it never
// propagates past that boundary.
type InvokeError struct {
	EntityID string
	Reason   string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("device %s: %s", e.EntityID, e.Reason)
}

// Client sends control actions to the device-control service, one call per
// resolved target.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Invoke executes one action against one entity. Arguments are already
// validated and resolved by the dispatcher.
func (c *Client) Invoke(ctx context.Context, entityID, action string, args map[string]interface{}) error {
	payload := map[string]interface{}{
		"action": action,
	}
	if len(args) > 0 {
		payload["arguments"] = args
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &InvokeError{EntityID: entityID, Reason: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/api/control/entities/%s/actions", c.baseURL, url.PathEscape(entityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &InvokeError{EntityID: entityID, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &InvokeError{EntityID: entityID, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return &InvokeError{
			EntityID: entityID,
			Reason:   fmt.Sprintf("control service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	return nil
}
