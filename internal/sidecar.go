package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Run loads the configuration from the environment, then reconciles the
// grafana token secret until ctx is canceled, serving metrics alongside.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return fmt.Errorf("building in-cluster config: %w", err)
	}
	k8s, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("creating kubernetes client: %w", err)
	}
	secrets := k8s.CoreV1().Secrets(cfg.Namespace)

	m := newMetrics()
	grafana := newGrafanaClient(logger, nil, cfg)
	r := newReconciler(logger, grafana, secrets, m, cfg)

	logger.Info("starting grafana token sidecar",
		"namespace", cfg.Namespace,
		"grafana_url", redactURL(cfg.GrafanaURL),
		"service_account", cfg.ServiceAccountName,
		"secret", cfg.TokenSecretName,
		"interval", cfg.checkInterval(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.handler())
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
	}
	return g.Wait()
}
