package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/ambient"
	"github.com/dgnsrekt/voxd/internal/audio"
	"github.com/dgnsrekt/voxd/internal/cache"
	"github.com/dgnsrekt/voxd/internal/config"
	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/dgnsrekt/voxd/internal/metrics"
	"github.com/dgnsrekt/voxd/internal/queue"
	"github.com/dgnsrekt/voxd/internal/speaker"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/dgnsrekt/voxd/internal/text"
	"github.com/dgnsrekt/voxd/internal/worker"
	"github.com/mitchellh/go-homedir"
)

// pipeline owns every long-lived component of a running voxd.
type pipeline struct {
	queue     *queue.Queue
	speaker   *speaker.Speaker
	worker    *worker.Worker
	registry  *engine.Registry
	player    audio.Player
	cache     *cache.Manager
	metrics   *metrics.Metrics
	ambient   ambient.Coordinator
	stateFile *config.StateFile

	metricsSrv *http.Server
	watch      bool

	wg        sync.WaitGroup
	workerErr chan error
}

type pipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	report func(worker.Report)
	watch  bool
}

// withReport is called after every delivered batch.
func withReport(fn func(worker.Report)) pipelineOption {
	return func(o *pipelineOptions) { o.report = fn }
}

// withWatch re-applies external edits of the state file.
func withWatch() pipelineOption {
	return func(o *pipelineOptions) { o.watch = true }
}

// newPipeline wires the components described by s. Nothing runs until
// start.
func newPipeline(s config.Settings, e config.Env, opts ...pipelineOption) (*pipeline, error) {
	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &pipeline{
		metrics:   metrics.New(),
		watch:     o.watch,
		workerErr: make(chan error, 1),
	}

	if s.Cache.Enabled {
		c, err := openCache(s)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	p.registry = buildRegistry(s, e, p.cache)

	if e.MockAudio {
		log.Info("VOXD_MOCK_AUDIO set, audio is not played")
		p.player = audio.DefaultMockPlayer()
	} else {
		player, err := audio.NewOtoPlayer(playerConfig(s))
		if err != nil {
			p.closeCache()
			return nil, fmt.Errorf("could not open audio device: %w", err)
		}
		p.player = player
	}

	p.ambient = ambient.Noop{}
	if s.Ambient.Duck {
		p.ambient = ambient.NewPlatform(log.Default())
	}

	sf, err := config.NewStateFile(s.StateFile)
	if err != nil {
		p.close()
		return nil, err
	}
	p.stateFile = sf
	initial, skipped, err := sf.Load(initialState(s))
	if err != nil {
		log.Warn("could not load state file, using defaults", "path", sf.Path(), "err", err)
		initial = initialState(s)
	}
	for _, err := range skipped {
		log.Warn("ignoring stored setting", "err", err)
	}

	p.queue = queue.New(s.Queue.Capacity)
	p.speaker = speaker.New(p.queue,
		speaker.WithInitial(initial),
		speaker.WithPersist(p.persist),
		speaker.WithSegmenter(text.SegmenterFor(s.Language)),
		speaker.WithMetrics(p.metrics),
	)

	wopts := []worker.Option{worker.WithMetrics(p.metrics)}
	if o.report != nil {
		wopts = append(wopts, worker.WithReport(o.report))
	}
	p.worker = worker.New(p.queue, p.speaker.State(), p.registry, p.player, audio.NewCues(), p.ambient, wopts...)
	p.speaker.Attach(p.worker)

	if s.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", p.metrics.Handler())
		p.metricsSrv = &http.Server{
			Addr:              s.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return p, nil
}

// playerConfig overrides the default device settings with configured ones.
func playerConfig(s config.Settings) audio.PlayerConfig {
	cfg := audio.DefaultPlayerConfig()
	if s.Audio.SampleRate > 0 {
		cfg.SampleRate = s.Audio.SampleRate
	}
	if s.Audio.Buffer > 0 {
		cfg.BufferSize = s.Audio.Buffer
	}
	return cfg
}

func initialState(s config.Settings) state.Snapshot {
	snap := state.Defaults()
	snap.Engine = engine.Kind(s.Engine)
	if s.Voice != "" {
		snap.Voice = s.Voice
	}
	return snap
}

func openCache(s config.Settings) (*cache.Manager, error) {
	dir := s.Cache.Dir
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid cache dir: %w", err)
		}
		dir = expanded
	}
	c, err := cache.NewManager(cache.Config{
		MemoryCapacity:   int64(s.Cache.MemoryMB) << 20,
		DiskCapacity:     int64(s.Cache.DiskMB) << 20,
		Dir:              dir,
		CompressionLevel: s.Cache.Compression,
		TTL:              s.Cache.TTL,
		CleanupInterval:  time.Hour,
	}, log.Default())
	if err != nil {
		return nil, fmt.Errorf("could not open cache: %w", err)
	}
	return c, nil
}

// buildRegistry registers every engine. A nil store disables caching.
func buildRegistry(s config.Settings, e config.Env, store *cache.Manager) *engine.Registry {
	modelDir, err := homedir.Expand(s.Piper.ModelDir)
	if err != nil {
		modelDir = s.Piper.ModelDir
	}

	engines := map[engine.Kind]engine.Engine{
		engine.KindPiper: engine.NewPiper(engine.PiperConfig{
			Binary:   s.Piper.Binary,
			ModelDir: modelDir,
			Timeout:  s.Piper.Timeout,
		}),
		engine.KindGTTS: engine.NewGTTS(engine.GTTSConfig{
			Binary:            s.GTTS.Binary,
			Language:          s.GTTS.Language,
			RequestsPerMinute: s.GTTS.RequestsPerMinute,
		}),
		engine.KindOpenAI: engine.NewOpenAI(engine.OpenAIConfig{
			APIKey:            e.OpenAIKey,
			BaseURL:           s.OpenAI.BaseURL,
			Model:             s.OpenAI.Model,
			RequestsPerMinute: s.OpenAI.RequestsPerMinute,
		}),
		engine.KindEspeak: engine.NewEspeak(engine.EspeakConfig{
			Binary: s.Espeak.Binary,
			Voice:  s.Espeak.Voice,
		}),
	}

	r := engine.NewRegistry()
	for kind, eng := range engines {
		if store != nil {
			eng = engine.NewCached(eng, store)
		}
		r.Register(kind, eng)
	}
	// The mock engine is never cached; its output is free.
	r.Register(engine.KindMock, engine.NewMock())
	return r
}

// persist is handed to the speaker and runs after every applied change.
func (p *pipeline) persist(snap state.Snapshot) {
	if err := p.stateFile.Save(snap); err != nil {
		log.Warn("could not save state", "path", p.stateFile.Path(), "err", err)
	}
}

// start runs the worker and, when configured, the state file watcher and
// the metrics listener.
func (p *pipeline) start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.workerErr <- p.worker.Run(ctx)
	}()

	if p.watch {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			err := p.stateFile.Watch(ctx, log.Default(), func(u state.Update) {
				if _, err := p.speaker.Configure(u); err != nil {
					log.Warn("ignoring edited state file", "err", err)
				}
			})
			if err != nil {
				log.Warn("state file watcher stopped", "err", err)
			}
		}()
	}

	if p.metricsSrv != nil {
		go func() {
			log.Info("serving metrics", "addr", p.metricsSrv.Addr)
			if err := p.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", "err", err)
			}
		}()
	}
}

// drain stops accepting submissions and waits until the worker has
// delivered everything queued. An interrupt abandons the rest.
func (p *pipeline) drain(ctx context.Context) error {
	p.queue.Close()
	select {
	case err := <-p.workerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Debug("queue drained", "batches", p.worker.Delivered())
		return nil
	case <-ctx.Done():
		log.Info("interrupted before the queue drained", "pending", p.queue.Len())
		return nil
	}
}

// restoreOnPanic returns ducked sessions to their volume before a panic
// continues unwinding.
func (p *pipeline) restoreOnPanic() {
	if r := recover(); r != nil {
		p.ambient.Unduck(context.Background())
		panic(r)
	}
}

// close releases everything. The context passed to start must be done or
// the queue drained first.
func (p *pipeline) close() {
	if p.queue != nil {
		p.queue.Close()
	}
	p.wg.Wait()
	if p.ambient != nil {
		if d, ok := p.ambient.(interface{ Ducked() int }); ok && d.Ducked() > 0 {
			log.Info("restoring ducked sessions", "sessions", d.Ducked())
		}
		p.ambient.Unduck(context.Background())
	}
	if p.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = p.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if p.player != nil {
		if err := p.player.Close(); err != nil {
			log.Debug("closing player", "err", err)
		}
	}
	p.closeCache()
}

func (p *pipeline) closeCache() {
	if p.cache == nil {
		return
	}
	p.cache.Flush()
	log.Debug("cache", "stats", p.cache.Stats().Summary())
	if err := p.cache.Close(); err != nil {
		log.Warn("closing cache", "err", err)
	}
}
