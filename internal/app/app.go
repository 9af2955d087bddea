// Package app wires configuration, the recognition pipeline and its optional
// surfaces into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/command"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/link"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/publish"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

// ErrLinkRequired is returned by New when serial.required is set and the
// link could not be opened.
var ErrLinkRequired = errors.New("serial link required but unavailable")

// Option customizes New.
type Option func(*App)

// WithSource replaces the camera and detector with src.
func WithSource(src pipeline.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSerialOpener replaces the serial port opener.
func WithSerialOpener(open link.OpenFunc) Option {
	return func(a *App) { a.openSerial = open }
}

// WithClock sets the time source of the debounce gate and dispatch stamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App is the main application: one Driver plus the components observing it.
type App struct {
	cfg *config.Config
	log logrus.FieldLogger

	openSerial link.OpenFunc
	now        func() time.Time

	source    pipeline.Source
	closers   []io.Closer
	model     gesture.Model
	debouncer *command.Debouncer
	link      *link.Dispatcher
	driver    *pipeline.Driver

	store     *store.Store
	runID     string
	publisher *publish.Publisher
	events    *server.EventHub
	server    *server.Server
	tray      *tray.Tray

	mu   sync.RWMutex
	last *pipeline.Dispatch
}

// New builds the application. It fails when the classifier cannot be loaded
// or when a required link is unavailable. Optional components that fail to
// start are logged and left out.
func New(cfg *config.Config, log logrus.FieldLogger, opts ...Option) (*App, error) {
	a := &App{
		cfg:        cfg,
		log:        log,
		openSerial: serial.Open,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	classifier, err := a.buildClassifier()
	if err != nil {
		return nil, err
	}

	a.link, err = link.OpenWith(a.openSerial, link.Config{
		Port:         cfg.Serial.Port,
		BaudRate:     cfg.Serial.Baud,
		WriteTimeout: cfg.Serial.WriteTimeout,
		SettleDelay:  cfg.Serial.SettleDelay,
	}, log)
	if err != nil && cfg.Serial.Required {
		a.closeModel()
		return nil, fmt.Errorf("%w: %v", ErrLinkRequired, err)
	}

	a.debouncer = command.NewDebouncer(cfg.Debounce.Cooldown, a.now())
	a.driver = pipeline.New(pipeline.Config{
		Classifier: classifier,
		Debouncer:  a.debouncer,
		Sender:     a.link,
		Logger:     log,
		Clock:      a.now,
	})

	a.driver.OnDispatch(a.remember)
	a.openStore()
	a.connectPublisher()
	a.setupServer()
	a.setupTray()

	return a, nil
}

func (a *App) buildClassifier() (gesture.Classifier, error) {
	switch gesture.Strategy(a.cfg.Classifier.Strategy) {
	case gesture.StrategyRules:
		a.log.Info("using rule-based classifier")
		return gesture.NewRuleClassifier(), nil

	case gesture.StrategyLearned:
		labels, err := parseLabels(a.cfg.Classifier.Labels)
		if err != nil {
			return nil, err
		}
		m, err := model.Load(model.Config{
			Path:        a.cfg.Classifier.ModelPath,
			Labels:      labels,
			ONNXLibrary: a.cfg.Classifier.ONNXLibrary,
		})
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		a.model = m
		a.log.WithField("model", a.cfg.Classifier.ModelPath).Info("using learned classifier")
		return gesture.NewLearnedClassifier(m, a.log), nil

	default:
		return nil, fmt.Errorf("unknown classifier strategy %q", a.cfg.Classifier.Strategy)
	}
}

func parseLabels(names []string) ([]gesture.Label, error) {
	labels := make([]gesture.Label, 0, len(names))
	for _, name := range names {
		l, ok := gesture.ParseLabel(name)
		if !ok {
			return nil, fmt.Errorf("unknown gesture label %q", name)
		}
		labels = append(labels, l)
	}
	return labels, nil
}

func (a *App) openStore() {
	if a.cfg.Store.Path == "" {
		return
	}
	st, err := store.New(a.cfg.Store.Path)
	if err != nil {
		a.log.WithError(err).Warn("dispatch history disabled")
		return
	}
	a.store = st
	a.driver.OnDispatch(a.recordDispatch)
}

func (a *App) connectPublisher() {
	if a.cfg.MQTT.Broker == "" {
		return
	}
	p, err := publish.Connect(publish.Config{
		Broker:   a.cfg.MQTT.Broker,
		ClientID: a.cfg.MQTT.ClientID,
		Topic:    a.cfg.MQTT.Topic,
	}, a.log)
	if err != nil {
		a.log.WithError(err).Warn("dispatch telemetry disabled")
		return
	}
	a.publisher = p
	a.driver.OnDispatch(a.publishDispatch)
}

func (a *App) setupServer() {
	if a.cfg.HTTP.Addr == "" {
		return
	}
	a.events = server.NewEventHub(a.log)
	a.server = server.New(server.Config{
		Store:  a.store,
		Status: a,
		Events: a.events,
		Logger: a.log,
	})
	a.driver.OnDispatch(a.broadcastDispatch)
}

func (a *App) setupTray() {
	if !a.cfg.UI.Tray {
		return
	}
	a.tray = tray.New()
	a.tray.SetLinkStatus(a.link.Name(), a.link.Available())
	a.tray.OnToggle(a.SetEnabled)
	a.driver.OnDispatch(func(d pipeline.Dispatch) {
		a.tray.SetLastCommand(string(d.Code) + " " + d.Gesture.String())
	})
}

// Driver returns the pipeline driver.
func (a *App) Driver() *pipeline.Driver {
	return a.driver
}

// Link returns the outbound link.
func (a *App) Link() *link.Dispatcher {
	return a.link
}

// Store returns the dispatch history, or nil when disabled.
func (a *App) Store() *store.Store {
	return a.store
}

// Server returns the status server, or nil when disabled.
func (a *App) Server() *server.Server {
	return a.server
}

// Events returns the websocket event hub, or nil when the server is disabled.
func (a *App) Events() *server.EventHub {
	return a.events
}

// SetEnabled pauses or resumes recognition.
func (a *App) SetEnabled(enabled bool) {
	a.driver.SetEnabled(enabled)
	a.log.WithField("enabled", enabled).Info("recognition toggled")
}

// Status implements api.StatusProvider.
func (a *App) Status() api.Status {
	st := a.debouncer.State()
	status := api.Status{
		Link: api.LinkStatus{
			Port:      a.link.Name(),
			Available: a.link.Available(),
		},
		Strategy:    a.cfg.Classifier.Strategy,
		Enabled:     a.driver.IsEnabled(),
		Frames:      a.driver.Frames(),
		LastGesture: a.driver.LastGesture().String(),
		Debounce: api.DebounceStatus{
			LastSentAt: st.LastSentAt,
			Cooldown:   a.debouncer.Cooldown(),
		},
	}
	if st.HasSent {
		status.Debounce.LastSent = string(st.LastSent)
	}
	return status
}

// LastDispatch returns the most recent accepted command, if any.
func (a *App) LastDispatch() (pipeline.Dispatch, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return pipeline.Dispatch{}, false
	}
	return *a.last, true
}

// Run drives the pipeline until ctx is cancelled or the source closes. With
// the tray enabled it must be called from the main goroutine.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.source == nil {
		src, err := a.openSource()
		if err != nil {
			return err
		}
		a.source = src
	}

	a.startRun()
	defer a.finishRun()

	var wg sync.WaitGroup
	if a.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Run(ctx, a.cfg.HTTP.Addr); err != nil {
				a.log.WithError(err).Error("status server stopped")
			}
		}()
	}

	a.log.WithFields(logrus.Fields{
		"strategy": a.cfg.Classifier.Strategy,
		"link":     a.link.Name(),
		"online":   a.link.Available(),
	}).Info("pipeline started")

	var runErr error
	if a.tray != nil {
		a.tray.OnQuit(cancel)
		done := make(chan struct{})
		go func() {
			defer close(done)
			runErr = a.driver.Run(ctx, a.source)
			a.tray.Stop()
		}()
		a.tray.Run()
		cancel()
		<-done
	} else {
		runErr = a.driver.Run(ctx, a.source)
	}

	cancel()
	wg.Wait()
	a.log.WithField("frames", a.driver.Frames()).Info("pipeline stopped")

	if errors.Is(runErr, pipeline.ErrSourceClosed) {
		return nil
	}
	return runErr
}

func (a *App) openSource() (pipeline.Source, error) {
	src, err := OpenSource(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, src)
	return src, nil
}

// OpenSource opens the configured camera and starts the hand detector.
func OpenSource(cfg *config.Config, log logrus.FieldLogger) (*capture.Source, error) {
	camera := capture.NewCamera(capture.CameraConfig{
		Device: cfg.Camera.Device,
		FPS:    cfg.Camera.FPS,
		Flip:   cfg.Camera.Flip,
	})
	if err := camera.Open(); err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}

	det, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        1,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinTracking,
		Script:          cfg.Detector.Script,
		ResponseTimeout: cfg.Detector.ResponseTimeout,
	}, log)
	if err != nil {
		camera.Close()
		return nil, fmt.Errorf("hand detector: %w", err)
	}

	return capture.NewSource(camera, det, true), nil
}

func (a *App) startRun() {
	if a.store == nil {
		return
	}
	run := &store.Run{
		Strategy:      a.cfg.Classifier.Strategy,
		Port:          a.link.Name(),
		LinkAvailable: a.link.Available(),
		StartedAt:     a.now(),
	}
	if err := a.store.Runs().Start(run); err != nil {
		a.log.WithError(err).Warn("could not record run")
		return
	}
	a.runID = run.ID
}

func (a *App) finishRun() {
	if a.store == nil || a.runID == "" {
		return
	}
	if err := a.store.Runs().Finish(a.runID, a.driver.Frames(), a.now()); err != nil {
		a.log.WithError(err).Warn("could not finish run")
	}
}

func (a *App) closeModel() {
	if a.model == nil {
		return
	}
	if err := model.Close(a.model); err != nil {
		a.log.WithError(err).Warn("error closing model")
	}
	a.model = nil
}

// Close releases every component. Safe to call once after Run returns.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.events != nil {
		a.events.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.link.Close())
	a.closeModel()
	return errors.Join(errs...)
}
