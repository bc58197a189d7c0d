package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cuttingtool/toolinspect/pkg/analyzer"
	"github.com/cuttingtool/toolinspect/pkg/config"
	"github.com/cuttingtool/toolinspect/pkg/events"
	"github.com/cuttingtool/toolinspect/pkg/history"
	"github.com/cuttingtool/toolinspect/pkg/standards"
)

// loadCatalog reads the standards file named by the config, falling back to
// the built-in ASME table.
func loadCatalog(conf config.Config) (*standards.Catalog, error) {
	p := conf.StandardsPath()
	if p == "" {
		return standards.Default(), nil
	}
	c, err := standards.LoadFile(p)
	if err != nil {
		return nil, err
	}
	logrus.WithField("path", p).Infof("loaded standards for %d materials", len(c.Materials()))
	return c, nil
}

func newModel(ctx context.Context, conf config.Config) (analyzer.Model, error) {
	key := conf.APIKey()
	if key == "" {
		logrus.Warn("no API key configured, analysis and recommendations are disabled")
		return nil, nil
	}
	g, err := analyzer.NewGemini(ctx, analyzer.GeminiOptions{
		APIKey:                    key,
		Model:                     conf.Model(),
		Temperature:               conf.Temperature(),
		RecommendationTemperature: conf.RecommendationTemperature(),
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("model", g.Name()).Info("analysis model ready")
	return g, nil
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(configPath string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	catalog, err := loadCatalog(conf)
	if err != nil {
		return err
	}

	store, err := history.Open(conf.DatabasePath(), conf.HistoryLimit())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.Errorf("failed to close history store: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := newModel(ctx, conf)
	if err != nil {
		return err
	}

	hub := events.NewEventHub()
	s := NewServer(Options{
		Config:  conf,
		Catalog: catalog,
		Model:   model,
		Store:   store,
		Hub:     hub,
	})
	if err := s.pruner.Schedule(conf.HistoryPruneCron()); err != nil {
		logrus.Errorf("history retention disabled: %v", err)
	}

	l, err := net.Listen("tcp", conf.ListenAddr())
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", conf.ListenAddr())
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.pruner.Start(gctx)
		<-gctx.Done()
		s.pruner.Stop()
		return nil
	})

	// Receive SIGHUP to reload config
	g.Go(func() error {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		defer signal.Stop(sigc)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-sigc:
				s.reload(conf)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down http server")
		// Streaming clients would otherwise hold Shutdown until the timeout.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("failed to shutdown http server: %v", err)
		}
		return nil
	})

	err = g.Wait()
	logrus.Info("exiting")
	return err
}

func (s *Server) reload(conf config.Config) {
	if err := conf.Load(); err != nil {
		logrus.Errorf("failed to reload config: %v", err)
		return
	}

	catalog, err := loadCatalog(conf)
	if err != nil {
		logrus.Errorf("failed to reload standards, keeping the current table: %v", err)
	} else {
		s.SetCatalog(catalog)
	}

	if err := s.pruner.Schedule(conf.HistoryPruneCron()); err != nil {
		logrus.Errorf("failed to reschedule history retention: %v", err)
	}
	// Apply a changed retention period without waiting for the schedule.
	s.pruner.RunNow()
	logrus.Infof("config reloaded")
}
