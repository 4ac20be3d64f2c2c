package logfile

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pipeline"
	"github.com/c360/debugtel/pkg/clock"
	"github.com/c360/debugtel/pkg/timestamp"
)

// ErrDownloadInProgress is returned when an automatic download is already running.
var ErrDownloadInProgress = stderrors.New("auto download already in progress")

// CompleteCategory is the name of the category holding every event.
const CompleteCategory = "debug-complete"

// HistorySource supplies the events to render. *pipeline.Pipeline implements it.
type HistorySource interface {
	History() []event.DebugEvent
	RemoveHistory(events []event.DebugEvent) int
	RecordAutoDownload()
	Stats() pipeline.Stats
}

// Generator renders the retained history as categorized log files and hands
// them to a Downloader.
type Generator struct {
	cfg        Config
	source     HistorySource
	downloader Downloader
	exportCfg  any

	logger  *slog.Logger
	clock   clock.Clock
	metrics *metric.Metrics

	autoRunning atomic.Bool
	autoTimeout time.Duration
	wg          sync.WaitGroup
}

// Option configures a Generator
type Option func(*Generator)

// WithDownloader sets where files are delivered.
func WithDownloader(d Downloader) Option {
	return func(g *Generator) {
		g.downloader = d
	}
}

// WithExportConfig sets the configuration snapshot included in JSON exports.
func WithExportConfig(v any) Option {
	return func(g *Generator) {
		g.exportCfg = v
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock sets the clock used for generation timestamps and file dates.
func WithClock(c clock.Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithMetrics records written, failed and dropped files.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Generator) {
		g.metrics = registry.CoreMetrics()
	}
}

// WithAutoDownloadTimeout bounds one background download pass.
func WithAutoDownloadTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.autoTimeout = d
		}
	}
}

// New creates a Generator. Without WithDownloader, files go to
// cfg.Directory; the objectstore destination needs an explicit downloader.
func New(cfg Config, source HistorySource, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "logfile", "New", "history source required")
	}

	g := &Generator{
		cfg:         cfg,
		source:      source,
		logger:      slog.Default(),
		clock:       clock.Real(),
		autoTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "logfile")

	if g.downloader == nil {
		if cfg.Destination == DestinationObjectStore {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "logfile", "New", "object store downloader required")
		}
		d, err := NewDirectoryDownloader(cfg.Directory)
		if err != nil {
			return nil, err
		}
		g.downloader = d
	}
	return g, nil
}

// GenerateLogFiles renders the complete category, then one per event type
// and one per source as configured. Categories over maxFileSizeKB are left
// out.
func (g *Generator) GenerateLogFiles() []Category {
	return g.categories(g.source.History())
}

func (g *Generator) categories(history []event.DebugEvent) []Category {
	events := sortedByTime(history)
	now := g.clock.Now()

	var categories []Category
	add := func(name string, evs []event.DebugEvent) {
		c := g.render(name, evs, now)
		if c.Size > g.cfg.MaxFileSizeKB*1024 {
			g.logger.Warn("Log category over size limit, skipped",
				"category", name, "size", c.Size, "max_kb", g.cfg.MaxFileSizeKB)
			g.metrics.RecordLogFiles("dropped", 1)
			return
		}
		categories = append(categories, c)
	}

	add(CompleteCategory, events)

	if g.cfg.CategorizeByType {
		byType := make(map[event.Type][]event.DebugEvent)
		for _, ev := range events {
			byType[ev.Type] = append(byType[ev.Type], ev)
		}
		for _, t := range event.Types() {
			if evs := byType[t]; len(evs) > 0 {
				add("debug-"+string(t), evs)
			}
		}
	}

	if g.cfg.CategorizeBySource {
		bySource := make(map[string][]event.DebugEvent)
		for _, ev := range events {
			name := "source-" + slug(ev.Source)
			bySource[name] = append(bySource[name], ev)
		}
		names := make([]string, 0, len(bySource))
		for name := range bySource {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			add(name, bySource[name])
		}
	}

	return categories
}

func (g *Generator) render(name string, events []event.DebugEvent, now time.Time) Category {
	content := FormatText(name, events, now)
	return Category{
		Name:     name,
		Events:   events,
		Filename: Filename(name, now, g.cfg.IncludeDateInFilename),
		Size:     len(content),
		Content:  content,
	}
}

// Filter selects events for CreateFilteredLogs. Empty fields match
// everything; set fields must all match.
type Filter struct {
	Name       string
	Severities []event.Severity
	Types      []event.Type
	// Sources matches events whose source contains any of the substrings.
	Sources []string
	// From and To bound the timestamp inclusively. Zero means unbounded.
	From time.Time
	To   time.Time
}

func (f Filter) match(ev event.DebugEvent) bool {
	if len(f.Severities) > 0 && !slices.Contains(f.Severities, ev.Severity) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, ev.Type) {
		return false
	}
	if len(f.Sources) > 0 && !slices.ContainsFunc(f.Sources, func(s string) bool {
		return strings.Contains(ev.Source, s)
	}) {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		return timestamp.InRange(ev.Timestamp, f.From, f.To)
	}
	return true
}

// CreateFilteredLogs renders the events matching f as a single category
// named f.Name, or "debug-filtered". The size limit does not apply.
func (g *Generator) CreateFilteredLogs(f Filter) Category {
	name := f.Name
	if name == "" {
		name = "debug-filtered"
	}
	var matched []event.DebugEvent
	for _, ev := range sortedByTime(g.source.History()) {
		if f.match(ev) {
			matched = append(matched, ev)
		}
	}
	return g.render(name, matched, g.clock.Now())
}

// DownloadCategory delivers one category.
func (g *Generator) DownloadCategory(ctx context.Context, c Category) error {
	if err := g.downloader.Download(ctx, c.Filename, []byte(c.Content)); err != nil {
		g.metrics.RecordLogFiles("failed", 1)
		return err
	}
	g.metrics.RecordLogFiles("written", 1)
	g.logger.Debug("Log file written", "file", c.Filename, "events", len(c.Events), "size", c.Size)
	return nil
}

// DownloadAll generates and delivers every category in order. It returns
// how many were delivered and the joined errors of the rest.
func (g *Generator) DownloadAll(ctx context.Context) (int, error) {
	return g.downloadAll(ctx, g.source.History())
}

func (g *Generator) downloadAll(ctx context.Context, history []event.DebugEvent) (int, error) {
	var (
		written int
		errs    []error
	)
	for _, c := range g.categories(history) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := g.DownloadCategory(ctx, c); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, stderrors.Join(errs...)
}

// AutoDownload delivers every category and, when all succeeded, removes the
// delivered events from the history and counts the pass. Events stored while
// the pass runs are kept for the next one. Only one pass runs at a time.
func (g *Generator) AutoDownload(ctx context.Context) error {
	if !g.autoRunning.CompareAndSwap(false, true) {
		return ErrDownloadInProgress
	}
	defer g.autoRunning.Store(false)
	return g.autoDownload(ctx)
}

func (g *Generator) autoDownload(ctx context.Context) error {
	events := g.source.History()
	written, err := g.downloadAll(ctx, events)
	if err != nil {
		g.logger.Warn("Auto download incomplete, history kept", "written", written, "error", err)
		return errors.Wrap(err, "logfile", "AutoDownload", "deliver log files")
	}
	cleared := g.source.RemoveHistory(events)
	g.source.RecordAutoDownload()
	g.logger.Info("Auto download complete", "files", written, "events", cleared)
	return nil
}

// ObserveHistory starts a background auto download when enabled and the
// history has reached the threshold. It is a pipeline.HistoryObserver.
func (g *Generator) ObserveHistory(historySize int) {
	if !g.cfg.AutoDownload || historySize < g.cfg.DownloadThreshold {
		return
	}
	if !g.autoRunning.CompareAndSwap(false, true) {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.autoRunning.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), g.autoTimeout)
		defer cancel()
		_ = g.autoDownload(ctx)
	}()
}

// Wait blocks until background downloads have finished.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// Export is the full JSON snapshot of the history.
type Export struct {
	ExportedAt string             `json:"exportedAt"`
	Events     []event.DebugEvent `json:"events"`
	Stats      pipeline.Stats     `json:"stats"`
	Config     any                `json:"config,omitempty"`
}

// ExportJSON returns the export file name and its pretty-printed content.
func (g *Generator) ExportJSON() (string, []byte, error) {
	now := g.clock.Now()
	events := g.source.History()
	if events == nil {
		events = []event.DebugEvent{}
	}
	exp := Export{
		ExportedAt: timestamp.Format(now),
		Events:     events,
		Stats:      g.source.Stats(),
		Config:     g.exportCfg,
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", nil, errors.WrapInvalid(err, "logfile", "ExportJSON", "marshal export")
	}
	return "debug-export-" + timestamp.Date(now) + ".json", data, nil
}

// DownloadExport delivers the JSON export.
func (g *Generator) DownloadExport(ctx context.Context) (string, error) {
	name, data, err := g.ExportJSON()
	if err != nil {
		return "", err
	}
	if err := g.downloader.Download(ctx, name, data); err != nil {
		g.metrics.RecordLogFiles("failed", 1)
		return "", err
	}
	g.metrics.RecordLogFiles("written", 1)
	return name, nil
}
