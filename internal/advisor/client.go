// Package advisor implements the remote advisor client (C7): an optional
// large-language-model backend an agent can delegate an ambiguous decision
// to, with an availability probe, a per-vehicle result cache, a bounded
// worker pool, and a deterministic fallback for whenever the advisor cannot
// be reached or trusted.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sarabaciu19/V2X-Intersection-Safety/internal/agent"
)

const (
	cacheTTL       = 1800 * time.Millisecond
	probeInterval  = 30
	probeTimeout   = 2 * time.Second
	requestTimeout = 8 * time.Second
	defaultWorkers = 4
	minWorkers     = 2
	maxWorkers     = 4
)

// Config configures a Client. ProbeTimeout and RequestTimeout default to
// probeTimeout/requestTimeout when zero.
type Config struct {
	BaseURL        string // e.g. http://localhost:11434
	Model          string
	Workers        int64
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
}

type cacheEntry struct {
	action agent.Action
	reason string
	at     time.Time
}

// Client is the remote advisor client. It satisfies agent.Advisor.
type Client struct {
	cfg  Config
	http *http.Client
	sem  *semaphore.Weighted
	log  *logrus.Logger

	mu        sync.Mutex
	available bool
	callCount int
	cache     map[string]cacheEntry
	pending   map[string]bool
	memory    map[string][]agent.Decision
}

// New returns a Client and runs the initial availability probe synchronously
// (mirrors the historical client's check-once-at-import behavior).
func New(cfg Config, log *logrus.Logger) *Client {
	if cfg.Workers < minWorkers || cfg.Workers > maxWorkers {
		cfg.Workers = defaultWorkers
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2:1b"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = probeTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = requestTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		sem:     semaphore.NewWeighted(cfg.Workers),
		log:     log,
		cache:   make(map[string]cacheEntry),
		pending: make(map[string]bool),
		memory:  make(map[string][]agent.Decision),
	}
	c.available = c.probe(context.Background())
	if c.available {
		c.log.WithField("model", c.cfg.Model).Info("advisor available — AI decisions enabled")
	} else {
		c.log.Warn("advisor unavailable — falling back to deterministic logic")
	}
	return c
}

func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Resolve implements agent.Advisor. It never blocks the caller on network
// I/O: it answers from cache or the deterministic fallback, and launches a
// background fetch (bounded by the worker semaphore) when needed.
func (c *Client) Resolve(ctx context.Context, q agent.Query) (agent.Action, string, error) {
	c.mu.Lock()

	c.callCount++
	if c.callCount%probeInterval == 0 {
		go func() {
			ok := c.probe(context.Background())
			c.mu.Lock()
			prevAvailable := c.available
			c.available = ok
			c.mu.Unlock()
			if ok && !prevAvailable {
				c.log.Info("advisor back online — AI decisions reactivated")
			}
		}()
	}

	if e, ok := c.cache[q.Self.ID]; ok && time.Since(e.at) < cacheTTL {
		c.mu.Unlock()
		return e.action, e.reason, nil
	}

	if !c.available {
		c.mu.Unlock()
		act, reason := deterministicFallback(q)
		return act, reason, nil
	}

	alreadyPending := c.pending[q.Self.ID]
	if !alreadyPending {
		c.pending[q.Self.ID] = true
		memSnapshot := append([]agent.Decision(nil), c.memory[q.Self.ID]...)
		go c.fetchAsync(q, memSnapshot)
	}
	cached, hasCached := c.cache[q.Self.ID]
	c.mu.Unlock()

	if hasCached {
		return cached.action, cached.reason, nil
	}
	act, reason := deterministicFallback(q)
	return act, reason, nil
}

// Reset drops every cached result, pending marker, and per-vehicle memory
// entry. Called at scenario reset so no advisor job outlives the scenario
// that requested it (spec.md §5): a fetch still in flight at reset finds its
// pending marker gone when it completes and discards its result.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	c.pending = make(map[string]bool)
	c.memory = make(map[string][]agent.Decision)
}

// Remember lets the caller extend the advisor's per-vehicle memory context,
// mirrored into the prompt for the next fetch (spec.md §4.7: bounded recent
// decision context to reduce oscillation).
func (c *Client) Remember(vehicleID string, d agent.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mem := append(c.memory[vehicleID], d)
	if len(mem) > 10 {
		mem = mem[len(mem)-10:]
	}
	c.memory[vehicleID] = mem
}

func (c *Client) fetchAsync(q agent.Query, memory []agent.Decision) {
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		c.mu.Lock()
		delete(c.pending, q.Self.ID)
		c.mu.Unlock()
		return
	}
	defer c.sem.Release(1)

	act, reason, err := c.fetchOnce(q, memory)

	c.mu.Lock()
	stillPending := c.pending[q.Self.ID] // false once Reset has dropped the request
	delete(c.pending, q.Self.ID)
	if err == nil {
		if stillPending {
			c.cache[q.Self.ID] = cacheEntry{action: act, reason: reason, at: time.Now()}
		}
	} else {
		c.log.WithField("vehicle", q.Self.ID).WithError(err).Warn("advisor request failed")
	}
	c.mu.Unlock()
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type decisionPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (c *Client) fetchOnce(q agent.Query, memory []agent.Decision) (agent.Action, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	reqBody := generateRequest{
		Model:  c.cfg.Model,
		Prompt: buildPrompt(q, memory),
		Stream: false,
		Format: "json",
		Options: map[string]any{
			"temperature":  0.0,
			"num_predict":  60,
			"correlation":  uuid.NewString(),
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return agent.Go, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return agent.Go, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.mu.Lock()
		c.available = false
		c.mu.Unlock()
		return agent.Go, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return agent.Go, "", fmt.Errorf("advisor returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.Go, "", fmt.Errorf("reading advisor response: %w", err)
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return agent.Go, "", fmt.Errorf("decoding advisor envelope: %w", err)
	}

	repaired := repairJSON(gen.Response)
	var decision decisionPayload
	if err := json.Unmarshal([]byte(repaired), &decision); err != nil {
		return agent.Go, "", fmt.Errorf("decoding advisor decision: %w", err)
	}

	act := agent.Action(strings.ToUpper(strings.TrimSpace(decision.Action)))
	switch act {
	case "GO":
		act = agent.Go
	case "YIELD":
		act = agent.Yield
	case "BRAKE":
		act = agent.Brake
	default:
		act = agent.Go
	}
	reason := strings.TrimSpace(decision.Reason)
	if reason == "" {
		reason = "decizie AI"
	}
	c.log.WithField("vehicle", q.Self.ID).WithField("action", act).Info("advisor decision")
	return act, reason, nil
}
