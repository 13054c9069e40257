package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Entity is one addressable controllable unit exposed by the registry.
type Entity struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Domain  string   `json:"domain"`
	AreaID  string   `json:"area_id,omitempty"`
	State   string   `json:"state,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// Area is a physical grouping of entities.
type Area struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	FloorID string `json:"floor_id,omitempty"`
}

// Floor groups areas vertically.
type Floor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a read-only HTTP client for the entity registry. Responses are
// cached with a short TTL: the registry is read-mostly and the assistant may
// hit it several times within one tool round.
type Client struct {
	baseURL string
	http    *http.Client

	cacheMu        sync.Mutex
	cacheTTL       time.Duration
	cachedEntities []Entity
	entitiesAt     time.Time
	cachedAreas    []Area
	areasAt        time.Time
	cachedFloors   []Floor
	floorsAt       time.Time
}

// NewClient creates a registry client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		cacheTTL: 2 * time.Second,
	}
}

// ListEntities returns every exposed entity, including its aliases.
func (c *Client) ListEntities(ctx context.Context) ([]Entity, error) {
	c.cacheMu.Lock()
	if c.cachedEntities != nil && time.Since(c.entitiesAt) < c.cacheTTL {
		cached := c.cachedEntities
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	var entities []Entity
	if err := c.getJSON(ctx, "/api/registry/entities", &entities); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cachedEntities = entities
	c.entitiesAt = time.Now()
	c.cacheMu.Unlock()
	return entities, nil
}

// ListAreas returns the registry's areas.
func (c *Client) ListAreas(ctx context.Context) ([]Area, error) {
	c.cacheMu.Lock()
	if c.cachedAreas != nil && time.Since(c.areasAt) < c.cacheTTL {
		cached := c.cachedAreas
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	var areas []Area
	if err := c.getJSON(ctx, "/api/registry/areas", &areas); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cachedAreas = areas
	c.areasAt = time.Now()
	c.cacheMu.Unlock()
	return areas, nil
}

// ListFloors returns the registry's floors.
func (c *Client) ListFloors(ctx context.Context) ([]Floor, error) {
	c.cacheMu.Lock()
	if c.cachedFloors != nil && time.Since(c.floorsAt) < c.cacheTTL {
		cached := c.cachedFloors
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	var floors []Floor
	if err := c.getJSON(ctx, "/api/registry/floors", &floors); err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cachedFloors = floors
	c.floorsAt = time.Now()
	c.cacheMu.Unlock()
	return floors, nil
}

// AliasesFor returns the configured aliases of one entity.
func (c *Client) AliasesFor(ctx context.Context, entityID string) ([]string, error) {
	entities, err := c.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.ID == entityID {
			return e.Aliases, nil
		}
	}
	return nil, fmt.Errorf("entity %q not found in registry", entityID)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
