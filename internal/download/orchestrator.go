package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

var (
	// ErrNoAssets is returned for an empty batch
	ErrNoAssets = errors.New("no assets to download")
	// ErrBatchInProgress is returned when a second batch starts before the first completes
	ErrBatchInProgress = errors.New("download batch already in progress")
	// ErrStopped is returned once the consumer has exited
	ErrStopped = errors.New("download orchestrator stopped")
)

// Asset is one downloadable item
type Asset struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// State is the orchestrator lifecycle
type State int

const (
	StateIdle State = iota
	StateCountingDown
	StateDownloading
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountingDown:
		return "counting-down"
	case StateDownloading:
		return "downloading"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is how a single trigger was carried out
type Outcome string

const (
	OutcomeSaved  Outcome = "saved"
	OutcomeOpened Outcome = "opened"
	OutcomeFailed Outcome = "failed"
)

// ItemResult records one trigger
type ItemResult struct {
	Asset       Asset
	Outcome     Outcome
	Path        string
	TriggeredAt time.Time
	Err         error
}

// Report summarizes a batch. Per-item failures are only visible here.
type Report struct {
	Results []ItemResult
}

// EventKind labels orchestrator events
type EventKind int

const (
	EventCountdown EventKind = iota
	EventTriggered
	EventComplete
)

// Event is emitted for progress display
type Event struct {
	Kind      EventKind
	Remaining int
	Result    ItemResult
}

// Fetcher retrieves a binary payload
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Saver persists a payload under a name derived from title
type Saver interface {
	Save(title string, body io.Reader) (string, error)
}

// Opener hands a URL to an external viewer
type Opener interface {
	Open(url string) error
}

// Options tune countdown and pacing
type Options struct {
	CountdownTicks int
	TickInterval   time.Duration
	InterItemDelay time.Duration
	QueueSize      int
}

// DefaultOptions returns a 3-tick 1 Hz countdown and 800ms spacing
func DefaultOptions() Options {
	return Options{
		CountdownTicks: 3,
		TickInterval:   time.Second,
		InterItemDelay: 800 * time.Millisecond,
		QueueSize:      64,
	}
}

type job struct {
	asset  Asset
	result chan ItemResult
}

// Orchestrator serializes download triggers from the countdown batch and from
// manual requests through one queue, spacing them by InterItemDelay.
type Orchestrator struct {
	fetcher Fetcher
	saver   Saver
	opener  Opener
	opts    Options
	queue   chan job
	done    chan struct{}
	start   sync.Once
	onEvent func(Event)
	logger  *zap.Logger

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates a new orchestrator. Call Start before enqueuing.
func NewOrchestrator(fetcher Fetcher, saver Saver, opener Opener, opts Options) *Orchestrator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	return &Orchestrator{
		fetcher: fetcher,
		saver:   saver,
		opener:  opener,
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
		onEvent: func(Event) {},
		logger:  util.ComponentLogger("download-orchestrator"),
	}
}

// OnEvent registers the progress callback. Countdown and completion events
// come from the RunBatch caller, trigger events from the consumer goroutine.
func (o *Orchestrator) OnEvent(fn func(Event)) {
	if fn != nil {
		o.onEvent = fn
	}
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Start launches the consumer. It stops when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.start.Do(func() {
		go o.consume(ctx)
	})
}

// Done is closed after the consumer exits
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// RunBatch counts down, then triggers every asset in order and waits for all
// of them.
func (o *Orchestrator) RunBatch(ctx context.Context, assets []Asset) (*Report, error) {
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}

	o.mu.Lock()
	if o.state == StateCountingDown || o.state == StateDownloading {
		o.mu.Unlock()
		return nil, ErrBatchInProgress
	}
	o.state = StateCountingDown
	o.mu.Unlock()

	if err := o.countdown(ctx); err != nil {
		o.setState(StateIdle)
		return nil, err
	}

	o.setState(StateDownloading)

	pending := make([]chan ItemResult, 0, len(assets))
	for _, asset := range assets {
		result, err := o.enqueue(ctx, asset)
		if err != nil {
			o.setState(StateIdle)
			return nil, err
		}
		pending = append(pending, result)
	}

	report := &Report{Results: make([]ItemResult, 0, len(assets))}
	for _, result := range pending {
		res, err := o.await(ctx, result)
		if err != nil {
			o.setState(StateIdle)
			return nil, err
		}
		report.Results = append(report.Results, res)
	}

	o.setState(StateComplete)
	o.onEvent(Event{Kind: EventComplete})
	o.logger.Info("Downloads started", zap.Int("items", len(report.Results)))
	return report, nil
}

// DownloadNow triggers a single asset without waiting for any countdown and
// returns once it has been triggered.
func (o *Orchestrator) DownloadNow(ctx context.Context, asset Asset) (ItemResult, error) {
	result, err := o.enqueue(ctx, asset)
	if err != nil {
		return ItemResult{}, err
	}
	return o.await(ctx, result)
}

func (o *Orchestrator) await(ctx context.Context, result chan ItemResult) (ItemResult, error) {
	select {
	case res := <-result:
		return res, nil
	case <-o.done:
		select {
		case res := <-result:
			return res, nil
		default:
			return ItemResult{}, ErrStopped
		}
	case <-ctx.Done():
		return ItemResult{}, ctx.Err()
	}
}

func (o *Orchestrator) countdown(ctx context.Context) error {
	for remaining := o.opts.CountdownTicks; remaining >= 0; remaining-- {
		o.onEvent(Event{Kind: EventCountdown, Remaining: remaining})
		if remaining == 0 {
			break
		}
		if err := sleep(ctx, o.opts.TickInterval); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) enqueue(ctx context.Context, asset Asset) (chan ItemResult, error) {
	j := job{asset: asset, result: make(chan ItemResult, 1)}
	select {
	case o.queue <- j:
		return j.result, nil
	case <-o.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) consume(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-o.queue:
			res := o.trigger(ctx, j.asset)
			o.onEvent(Event{Kind: EventTriggered, Result: res})
			j.result <- res
			if err := sleep(ctx, o.opts.InterItemDelay); err != nil {
				return
			}
		}
	}
}

// trigger saves the payload locally, or opens the raw URL when the fetch or
// save fails. There is no retry.
func (o *Orchestrator) trigger(ctx context.Context, asset Asset) ItemResult {
	res := ItemResult{Asset: asset, TriggeredAt: time.Now()}

	path, err := o.fetchAndSave(ctx, asset)
	if err == nil {
		res.Outcome = OutcomeSaved
		res.Path = path
		util.DownloadsTotal.WithLabelValues(string(OutcomeSaved)).Inc()
		return res
	}

	o.logger.Warn("Download failed, opening raw URL",
		zap.String("item_id", asset.ItemID),
		zap.Error(err))
	res.Err = err

	if openErr := o.opener.Open(asset.URL); openErr != nil {
		o.logger.Error("Failed to open URL", zap.String("item_id", asset.ItemID), zap.Error(openErr))
		res.Outcome = OutcomeFailed
		res.Err = errors.Join(err, openErr)
		util.DownloadsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return res
	}

	res.Outcome = OutcomeOpened
	util.DownloadsTotal.WithLabelValues(string(OutcomeOpened)).Inc()
	return res
}

func (o *Orchestrator) fetchAndSave(ctx context.Context, asset Asset) (string, error) {
	body, err := o.fetcher.Fetch(ctx, asset.URL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return o.saver.Save(asset.Title, body)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
