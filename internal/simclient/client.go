// Package simclient pulls the zone block, building and district tables from
// the simulation host and turns them into an in-memory world.
package simclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/world"
)

// ErrUnavailable is returned when the simulation host cannot be reached or
// keeps failing after all retries.
var ErrUnavailable = errors.New("simulation host unavailable")

// maxWorldBytes bounds a world response body.
const maxWorldBytes = 256 << 20

// Client talks to the simulation host.
type Client struct {
	baseURL    string
	retryCount int
	backoff    time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// NewClient creates a client from the simulation config.
func NewClient(cfg config.SimulationConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retryCount: cfg.RetryCount,
		backoff:    100 * time.Millisecond,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "simclient"),
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// BuildingRecord is a building as the host sends it.
type BuildingRecord struct {
	Position world.Vec3 `json:"position"`
	Angle    float32    `json:"angle"`
	Width    uint8      `json:"width"`
	Length   uint8      `json:"length"`
	Service  string     `json:"service"`
	AI       string     `json:"ai"`
}

// DistrictRecord is a district as the host sends it.
type DistrictRecord struct {
	ID              uint8        `json:"id"`
	Name            string       `json:"name"`
	Specializations []string     `json:"specializations"`
	Areas           []world.Area `json:"areas"`
}

// WorldResponse is the body of GET /world.
type WorldResponse struct {
	Version   int64            `json:"version"`
	Blocks    []world.Block    `json:"blocks"`
	Buildings []BuildingRecord `json:"buildings"`
	Districts []DistrictRecord `json:"districts"`
}

// Snapshot is a decoded world plus the host's version stamp.
type Snapshot struct {
	Version int64
	World   *world.Memory
}

// HealthCheck checks if the simulation host is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check failed with status %d", ErrUnavailable, resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("%w: host reported status %q", ErrUnavailable, health.Status)
	}
	return nil
}

// FetchWorld downloads and decodes the current world, retrying with
// exponential backoff.
func (c *Client) FetchWorld(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.fetchOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Debug("world fetch failed", "attempt", attempt+1, "error", err)
			continue
		}

		snap, err := Decode(resp)
		if err != nil {
			// A malformed world will not improve on retry.
			return nil, err
		}
		return snap, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.retryCount+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (*WorldResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/world", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("world request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out WorldResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxWorldBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode world: %w", err)
	}
	return &out, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", "error", err)
	}
}

// Decode builds an in-memory world from a host response.
func Decode(resp *WorldResponse) (*Snapshot, error) {
	m := world.NewMemory()

	for i, b := range resp.Blocks {
		if rows := b.EncodedRows(); rows > world.MaxBlockRows {
			return nil, fmt.Errorf("block %d: row count %d exceeds %d", i, rows, world.MaxBlockRows)
		}
		if _, err := m.AddBlock(b); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	for i, rec := range resp.Buildings {
		ai := world.AIDecoration
		if rec.AI == "common" {
			ai = world.AICommon
		}
		_, err := m.AddBuilding(world.Building{
			Position:   rec.Position,
			Angle:      rec.Angle,
			Width:      rec.Width,
			Length:     rec.Length,
			SubService: world.ParseSubService(rec.Service),
			AI:         ai,
		})
		if err != nil {
			return nil, fmt.Errorf("building %d: %w", i, err)
		}
	}

	for _, rec := range resp.Districts {
		var spec world.Specialization
		for _, name := range rec.Specializations {
			s, err := world.ParseSpecialization(name)
			if err != nil {
				return nil, fmt.Errorf("district %d: %w", rec.ID, err)
			}
			spec |= s
		}
		if err := m.SetDistrict(rec.ID, world.District{
			Flags:          world.DistrictCreated,
			Specialization: spec,
			Name:           rec.Name,
		}); err != nil {
			return nil, err
		}
		for _, area := range rec.Areas {
			area.District = rec.ID
			if err := m.PaintDistrict(area); err != nil {
				return nil, err
			}
		}
	}

	return &Snapshot{Version: resp.Version, World: m}, nil
}
