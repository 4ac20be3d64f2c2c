package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/debugtel/config"
	"github.com/c360/debugtel/health"
	"github.com/c360/debugtel/logfile"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/natsclient"
	"github.com/c360/debugtel/pipeline"
	"github.com/c360/debugtel/sanitizer"
	"github.com/c360/debugtel/transport"
	"github.com/c360/debugtel/transportregistry"
)

// app holds the assembled components of one debugtel process
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	nats      *natsclient.Client
	transport transport.Transport
	sanitizer *sanitizer.Sanitizer
	pipeline  *pipeline.Pipeline
	logs      *logfile.Generator
	server    *metric.Server
}

// newApp builds every component from cfg. Nothing is started and no
// network connection is made except the NATS connection when a component
// needs one.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
	}

	if cfg.NeedsNATS() {
		if err := a.connectNATS(ctx); err != nil {
			return nil, err
		}
	}

	tr, err := transportregistry.New(cfg.Transport, transport.Dependencies{
		NATSClient:      a.nats,
		MetricsRegistry: a.registry,
		Logger:          logger,
		Security:        cfg.Security,
	})
	if err != nil {
		a.closeNATS()
		return nil, fmt.Errorf("create transport: %w", err)
	}
	a.transport = tr

	sanOpts := []sanitizer.Option{
		sanitizer.WithLogger(logger),
		sanitizer.WithProduction(cfg.IsProduction()),
		sanitizer.WithMetrics(a.registry),
	}
	if r, ok := tr.(sanitizer.Reporter); ok && cfg.Transport.HTTP.ReportEndpoint != "" {
		sanOpts = append(sanOpts, sanitizer.WithReporter(r))
	}
	san, err := sanitizer.New(cfg.Sanitizer, sanOpts...)
	if err != nil {
		_ = tr.Close()
		a.closeNATS()
		return nil, fmt.Errorf("create sanitizer: %w", err)
	}
	a.sanitizer = san

	// The generator reads the pipeline history, and the pipeline reports
	// history growth to the generator. logs is set before any event arrives.
	p, err := pipeline.New(cfg.Pipeline,
		pipeline.WithTransport(tr),
		pipeline.WithSanitizer(san),
		pipeline.WithHistoryObserver(func(n int) {
			if a.logs != nil {
				a.logs.ObserveHistory(n)
			}
		}),
		pipeline.WithLogger(logger),
		pipeline.WithProduction(cfg.IsProduction()),
		pipeline.WithMetrics(a.registry),
	)
	if err != nil {
		a.closeEarly()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	a.pipeline = p

	genOpts := []logfile.Option{
		logfile.WithLogger(logger),
		logfile.WithMetrics(a.registry),
		logfile.WithExportConfig(cfg.Clone()),
	}
	if cfg.LogFiles.Destination == logfile.DestinationObjectStore {
		d, err := logfile.NewObjectStoreDownloader(ctx, a.nats, cfg.LogFiles.Bucket)
		if err != nil {
			a.closeEarly()
			return nil, fmt.Errorf("open log bucket: %w", err)
		}
		genOpts = append(genOpts, logfile.WithDownloader(d))
	}
	logs, err := logfile.New(cfg.LogFiles, p, genOpts...)
	if err != nil {
		a.closeEarly()
		return nil, fmt.Errorf("create log file generator: %w", err)
	}
	a.logs = logs

	if cfg.Metrics.Enabled {
		a.server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.registry, cfg.Security)
		a.server.SetHealthFunc(a.health)
		a.routes(a.server)
	}

	return a, nil
}

func (a *app) connectNATS(ctx context.Context) error {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.registry),
		natsclient.WithMaxReconnects(a.cfg.NATS.MaxReconnects),
		natsclient.WithHealthChangeCallback(a.onNATSHealthChange),
	}
	if a.cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(a.cfg.NATS.ReconnectWait))
	}
	if a.cfg.NATS.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(a.cfg.NATS.DrainTimeout))
	}
	if a.cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(a.cfg.NATS.Username, a.cfg.NATS.Password))
	}
	if a.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(a.cfg.NATS.Token))
	}
	if tlsCfg := a.cfg.Security.TLS.Client; tlsCfg.Enabled {
		var certFile, keyFile string
		if tlsCfg.MTLS.Enabled {
			certFile, keyFile = tlsCfg.MTLS.CertFile, tlsCfg.MTLS.KeyFile
		}
		opts = append(opts, natsclient.WithTLS(certFile, keyFile, tlsCfg.CAFiles...))
	}

	client, err := natsclient.NewClient(a.cfg.NATSURL(), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", client.URL())
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	a.nats = client
	return nil
}

// onNATSHealthChange publishes connection health as the nats health gauge.
// A lost connection only degrades the process because nats.go keeps
// reconnecting and buffers publishes meanwhile.
func (a *app) onNATSHealthChange(healthy bool) {
	status := health.NewHealthy("nats", "Connection healthy")
	if !healthy {
		status = health.NewDegraded("nats", "Connection lost")
	}
	a.registry.CoreMetrics().RecordHealthStatus(status.Component, status.Level())
	a.logger.Info("NATS health changed", "status", status.Status)
}

// start begins periodic uploads and the NATS ingest subscription
func (a *app) start(ctx context.Context) error {
	if err := a.pipeline.Start(ctx); err != nil {
		return err
	}
	if subject := a.cfg.NATS.IngestSubject; subject != "" {
		if err := a.nats.Subscribe(ctx, subject, a.handleNATSEvents); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		a.logger.Info("Ingesting events from NATS", "subject", subject)
	}
	return nil
}

// shutdown stops the server, flushes the queue with a final upload and
// releases every resource. With export set, log files and a JSON export are
// written first.
func (a *app) shutdown(ctx context.Context, export bool) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if export {
		a.dump(ctx)
	}

	if err := a.pipeline.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop pipeline: %w", err))
	}
	a.logs.Wait()

	if err := a.sanitizer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sanitizer: %w", err))
	}
	a.closeNATS()

	return stderrors.Join(errs...)
}

// closeEarly releases what newApp opened when a later step fails
func (a *app) closeEarly() {
	if a.sanitizer != nil {
		_ = a.sanitizer.Close()
	}
	if a.pipeline != nil {
		// Stop also closes the transport
		_ = a.pipeline.Stop(context.Background())
	} else if a.transport != nil {
		_ = a.transport.Close()
	}
	a.closeNATS()
}

func (a *app) closeNATS() {
	if a.nats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.nats.Close(ctx); err != nil {
		a.logger.Warn("NATS close failed", "error", err)
	}
}

// dump writes every log category and the JSON export
func (a *app) dump(ctx context.Context) {
	written, err := a.logs.DownloadAll(ctx)
	if err != nil {
		a.logger.Warn("Log file dump incomplete", "written", written, "error", err)
	}
	name, err := a.logs.DownloadExport(ctx)
	if err != nil {
		a.logger.Warn("JSON export failed", "error", err)
		return
	}
	a.logger.Info("Debug dump written", "log_files", written, "export", name)
}

// health aggregates the pipeline and, when used, the NATS connection
func (a *app) health() health.Status {
	subs := []health.Status{a.pipeline.Health()}
	if a.nats != nil {
		var err error
		status := a.nats.Status()
		if !a.nats.IsHealthy() {
			err = fmt.Errorf("connection %s after %d failures", status, a.nats.Failures())
		}
		// Reconnecting keeps buffered publishes, so it only degrades.
		subs = append(subs, health.FromError("nats", err, status == natsclient.StatusReconnecting, nil))
	}
	return health.Aggregate(appName, subs)
}
