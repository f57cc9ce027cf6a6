// Package app wires the camera, the landmark detector, the overlay and the
// web page into the running facemesh service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/teslashibe/go-facemesh/internal/config"
	"github.com/teslashibe/go-facemesh/internal/httpc"
	"github.com/teslashibe/go-facemesh/pkg/camera"
	"github.com/teslashibe/go-facemesh/pkg/canvas"
	"github.com/teslashibe/go-facemesh/pkg/debug"
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
	"github.com/teslashibe/go-facemesh/pkg/overlay"
	"github.com/teslashibe/go-facemesh/pkg/render"
	"github.com/teslashibe/go-facemesh/pkg/topology"
	"github.com/teslashibe/go-facemesh/pkg/web"
)

// App owns every component and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	// Injected
	factory    landmarker.Factory
	opener     camera.Opener
	scheduler  render.Scheduler
	ticker     *render.TickerScheduler
	httpClient *http.Client
	noWeb      bool

	// Video
	source  *camera.Source
	cameras *camera.Manager

	// Drawing
	canvas   *canvas.MatCanvas
	renderer *overlay.Renderer

	// Loop and page
	loop      *render.Loop
	webServer *web.Server
}

// Option customizes an App, mostly for tests.
type Option func(*App)

// WithFactory replaces the detector backend chosen from the config.
func WithFactory(f landmarker.Factory) Option {
	return func(a *App) { a.factory = f }
}

// WithCameraOpener replaces the gocv device opener.
func WithCameraOpener(o camera.Opener) Option {
	return func(a *App) { a.opener = o }
}

// WithScheduler replaces the display-refresh ticker.
func WithScheduler(s render.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithHTTPClient sets the client used to download the model.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// WithoutListener keeps the web server from binding its port. Handlers are
// still reachable through Web().App().Test.
func WithoutListener() Option {
	return func(a *App) { a.noWeb = true }
}

// New validates cfg and builds every component. Nothing is opened yet.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	debug.Enabled = cfg.Debug

	a := &App{
		config: cfg,
		logger: slog.Default().With("component", "app"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.factory == nil {
		a.factory = backendFactory(cfg)
	}
	if a.httpClient == nil {
		a.httpClient = httpc.NewClient(httpc.AssetTimeout)
	}

	// Camera
	camCfg := camera.DefaultConfig()
	camCfg.Device = cfg.CameraDevice
	camCfg.Width, camCfg.Height = cfg.CameraWidth, cfg.CameraHeight
	camCfg.MinWidth, camCfg.MinHeight = cfg.CameraWidth, cfg.CameraHeight
	camCfg.Framerate = cfg.CameraFramerate
	if errs := camCfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}

	var srcOpts []camera.SourceOption
	if a.opener != nil {
		srcOpts = append(srcOpts, camera.WithOpener(a.opener))
	}
	a.source = camera.NewSource(camCfg, srcOpts...)
	a.cameras = camera.NewManager(camCfg)
	a.cameras.OnConfigChange = a.source.Apply

	// Web page
	a.webServer = web.NewServer(":" + cfg.Port)
	a.webServer.CameraConfig = a.cameras.GetConfigJSON
	a.webServer.OnCameraConfig = a.cameras.UpdateConfig
	a.webServer.Stats = a.stats

	// Overlay, drawn at the camera's requested size
	a.canvas = canvas.New(cfg.CameraWidth, cfg.CameraHeight)
	a.canvas.SetQuality(camCfg.Quality)
	a.renderer = overlay.NewRenderer(a.canvas, a.webServer, nil,
		overlay.WithOnLoaded(a.webServer.SetLoaded),
	)

	// Render loop
	loopOpts := []render.Option{
		render.WithOnStateChange(func(_, s render.State) { a.webServer.SetState(s.String()) }),
	}
	if a.scheduler == nil {
		a.ticker = render.NewTickerScheduler(cfg.RefreshRate)
		a.scheduler = a.ticker
	}
	loopOpts = append(loopOpts, render.WithScheduler(a.scheduler))
	a.loop = render.New(a.source, a.openDetector, &presenter{
		renderer: a.renderer,
		canvas:   a.canvas,
		sink:     a.webServer,
	}, loopOpts...)

	return a, nil
}

// backendFactory picks the detector backend named in cfg.
func backendFactory(cfg config.Config) landmarker.Factory {
	if cfg.Backend == config.BackendRemote {
		return landmarker.NewRemoteFactory(cfg.RemoteURL, nil)
	}
	name, args := cfg.WorkerArgv()
	return landmarker.NewWorkerFactory(name, args...)
}

// Run starts the page, the camera and the loop, and blocks until ctx is done
// or the web server fails. A failed loop leaves the page up showing the error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	webErr := make(chan error, 1)
	if !a.noWeb {
		wg.Add(1)
		go func() {
			defer wg.Done()
			webErr <- a.webServer.Start(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.forwardErrors(ctx)
	}()

	// Camera acquisition and detector construction proceed independently.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.source.Open(ctx); err != nil && ctx.Err() == nil {
			a.cameraFailed(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.loop.Run(ctx); err != nil {
			a.logger.Error("render loop stopped", "error", err)
		}
	}()

	var err error
	select {
	case err = <-webErr:
		if err != nil {
			err = fmt.Errorf("web server: %w", err)
		}
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	return err
}

// forwardErrors shows loop errors on the page and ends the loop on a
// capture error.
func (a *App) forwardErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-a.loop.Errors():
			a.webServer.ReportError(err)
		case err := <-a.source.Errors():
			a.cameraFailed(err)
		}
	}
}

// cameraFailed ends the loop and shows err on the page. The page is told
// directly since a loop that already failed publishes nothing more.
func (a *App) cameraFailed(err error) {
	err = fmt.Errorf("camera: %w", err)
	a.webServer.ReportError(err)
	a.loop.Fail(err)
}

// openDetector resolves the model asset and constructs the detector session.
func (a *App) openDetector(ctx context.Context) (render.Detector, error) {
	modelPath := a.config.ModelPath
	if modelPath == "" {
		path, err := landmarker.FetchModel(ctx, a.httpClient, a.config.ModelURL, a.config.ModelCacheDir)
		if err != nil {
			return nil, err
		}
		modelPath = path
	}

	sess, err := landmarker.NewSession(ctx, a.factory,
		landmarker.WithModelAssetPath(modelPath),
		landmarker.WithDelegate(landmarker.Delegate(a.config.Delegate)),
		landmarker.WithNumFaces(a.config.NumFaces),
		landmarker.WithBlendshapes(true),
	)
	if err != nil {
		return nil, err
	}

	topo := sess.Topology()
	if a.config.TopologyFile != "" {
		file, err := topology.LoadFile(a.config.TopologyFile)
		if err != nil {
			sess.Close()
			return nil, err
		}
		topo = topo.Merge(file)
	}
	a.renderer.SetTopology(topo)
	a.webServer.SetSessionID(sess.ID())

	return sess, nil
}

func (a *App) stats() map[string]interface{} {
	return map[string]interface{}{
		"loop":   a.loop.Stats(),
		"camera": a.source.Stats(),
	}
}

// Web returns the page server.
func (a *App) Web() *web.Server {
	return a.webServer
}

// Loop returns the render loop.
func (a *App) Loop() *render.Loop {
	return a.loop
}

// Shutdown releases the camera and the canvas. Run must have returned.
func (a *App) Shutdown() {
	if err := a.source.Close(); err != nil {
		a.logger.Warn("camera close failed", "error", err)
	}
	if a.ticker != nil {
		a.ticker.Stop()
	}
	a.canvas.Close()
	a.logger.Info("shutdown complete")
}

// compositor lays the overlay over a camera frame.
type compositor interface {
	Composite(frameJPEG []byte) ([]byte, error)
}

// frameSink receives composited frames.
type frameSink interface {
	SendFrame(jpeg []byte)
}

// presenter draws the overlay, composites it over the frame the result came
// from and publishes the outcome.
type presenter struct {
	renderer *overlay.Renderer
	canvas   compositor
	sink     frameSink
}

func (p *presenter) Draw(frame landmarker.Frame, res *landmarker.Result) error {
	p.renderer.Draw(res)
	out, err := p.canvas.Composite(frame.JPEG)
	if err != nil {
		return err
	}
	p.sink.SendFrame(out)
	return nil
}
