// Package callback delivers post-commit activation change notifications
// to the callback URLs registered per application. Delivery runs on a
// queue-backed worker pool fully decoupled from the request path: a full
// queue drops the oldest event rather than blocking.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/saalistaja/powerauth-server/internal/metrics"
	"github.com/saalistaja/powerauth-server/internal/model"
	"github.com/saalistaja/powerauth-server/internal/service"
	"github.com/saalistaja/powerauth-server/pkg/logger"
)

// Event identifies one activation status change.
type Event struct {
	ApplicationID int64  `json:"applicationId"`
	ActivationID  string `json:"activationId"`
}

// Config tunes the dispatcher.
type Config struct {
	QueueSize   int
	Workers     int
	HTTPTimeout time.Duration
	MaxRetries  uint64
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 5 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Dispatcher implements service.Notifier.
type Dispatcher struct {
	repo    service.Repository
	log     *logger.Logger
	metrics *metrics.Metrics
	cfg     Config
	client  *http.Client
	queue   chan Event

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[struct{}]

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a dispatcher. Call Start before relying on delivery.
func New(repo service.Repository, log *logger.Logger, m *metrics.Metrics, cfg Config) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		repo:     repo,
		log:      log,
		metrics:  m,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		queue:    make(chan Event, cfg.QueueSize),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Notify implements service.Notifier. Never blocks: when the queue is
// full the oldest queued event is discarded and counted.
func (d *Dispatcher) Notify(applicationID int64, activationID string) {
	ev := Event{ApplicationID: applicationID, ActivationID: activationID}
	select {
	case d.queue <- ev:
	default:
		select {
		case <-d.queue:
			d.metrics.CallbacksDroppedTotal.Inc()
		default:
		}
		select {
		case d.queue <- ev:
		default:
			d.metrics.CallbacksDroppedTotal.Inc()
		}
	}
	d.metrics.CallbackQueueDepth.Set(float64(len(d.queue)))
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop drains the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.metrics.CallbackQueueDepth.Set(float64(len(d.queue)))
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var urls []model.CallbackURL
	err := d.repo.InTx(ctx, func(tx service.Store) error {
		var err error
		urls, err = tx.ListCallbackURLs(ctx, ev.ApplicationID)
		return err
	})
	if err != nil {
		d.log.WithError(err).Error("callback url lookup failed")
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		d.log.WithError(err).Error("callback payload marshal failed")
		return
	}

	for _, cb := range urls {
		if err := d.post(ctx, cb.URL, body); err != nil {
			d.metrics.CallbacksFailedTotal.Inc()
			d.log.WithError(err).WithField("url", cb.URL).Warn("callback delivery failed")
			continue
		}
		d.metrics.CallbacksDeliveredTotal.Inc()
	}
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	cb := d.breaker(url)
	_, err := cb.Execute(func() (struct{}, error) {
		op := func() error { return d.postOnce(ctx, url, body) }
		return struct{}{}, backoff.Retry(op,
			backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.cfg.MaxRetries), ctx))
	})
	return err
}

func (d *Dispatcher) postOnce(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) breaker(url string) *gobreaker.CircuitBreaker[struct{}] {
	d.breakerMu.Lock()
	defer d.breakerMu.Unlock()
	if cb, ok := d.breakers[url]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    url,
		Timeout: 30 * time.Second,
	})
	d.breakers[url] = cb
	return cb
}
