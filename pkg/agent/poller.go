// Package agent implements the host-side daemon that polls local
// sensors and reports what it sees to the scheduler over REST. It never
// executes submitted work itself; task execution is out of scope.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/sensors"
)

// Poller periodically reads a sensors.Source and POSTs the result to a
// scheduler's telemetry ingest endpoint.
type Poller struct {
	id            string
	source        sensors.Source
	schedulerAddr string
	httpClient    *http.Client
	logger        *logger.Logger
}

// Config configures a Poller.
type Config struct {
	ID            string
	SchedulerAddr string
	HTTPTimeout   time.Duration
}

// New creates a poller over source, reporting as cfg.ID to
// cfg.SchedulerAddr.
func New(cfg Config, source sensors.Source, log *logger.Logger) *Poller {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Poller{
		id:            cfg.ID,
		source:        source,
		schedulerAddr: cfg.SchedulerAddr,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        log,
	}
}

// snapshotPayload mirrors the scheduler REST server's agent snapshot
// ingest body.
type snapshotPayload struct {
	System sensors.SystemSnapshot `json:"system"`
	GPUs   []sensors.GpuSnapshot  `json:"gpus,omitempty"`
	Power  *models.PowerReading   `json:"power,omitempty"`
}

// PollOnce takes one reading from the source and posts it. It returns
// the reading even when the post fails, so callers can still log or
// act on it locally.
func (p *Poller) PollOnce(ctx context.Context) (snapshotPayload, error) {
	sys, err := p.source.ReadSystemMetrics()
	if err != nil {
		return snapshotPayload{}, fmt.Errorf("read system metrics: %w", err)
	}

	payload := snapshotPayload{System: sys}

	if gpus, err := p.source.ReadGPUs(); err == nil {
		payload.GPUs = gpus
	} else if !isUnsupported(err) {
		p.logger.Debug("gpu read failed", logger.Error(err))
	}

	if power, err := p.source.ReadPower(); err == nil {
		payload.Power = &power
	} else if !isUnsupported(err) {
		p.logger.Debug("power read failed", logger.Error(err))
	}

	if err := p.post(ctx, payload); err != nil {
		return payload, fmt.Errorf("post snapshot: %w", err)
	}
	return payload, nil
}

// Run polls on interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.logger.Error("poll failed", logger.Error(err))
			}
		}
	}
}

func (p *Poller) post(ctx context.Context, payload snapshotPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/agents/%s/snapshot", p.schedulerAddr, p.id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("scheduler returned status %d", resp.StatusCode)
	}
	return nil
}

func isUnsupported(err error) bool {
	_, ok := err.(sensors.ErrUnsupported)
	return ok
}
