package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// reconciler ensures the configured Grafana service account exists and that
// a token minted for it is stored in a kubernetes secret.
//
// A token is only minted in the cycle that creates the account. Once the
// account exists the secret is left alone, unless RemintOnMissingSecret is
// set and the secret has gone missing.
type reconciler struct {
	logger   *slog.Logger
	config   config
	grafana  *grafanaClient
	secrets  *tokenSecrets
	retry    retryPolicy
	metrics  *metrics
	interval time.Duration
}

func newReconciler(logger *slog.Logger, grafana *grafanaClient, secrets secretsClient, m *metrics, cfg config) *reconciler {
	r := &reconciler{
		logger:  logger,
		config:  cfg,
		grafana: grafana,
		secrets: &tokenSecrets{
			client:    secrets,
			logger:    logger,
			metrics:   m,
			namespace: cfg.Namespace,
			name:      cfg.TokenSecretName,
		},
		retry:    newConnectRetryPolicy(cfg),
		metrics:  m,
		interval: cfg.checkInterval(),
	}
	r.retry.notify = func(attempt int, err error, next time.Duration) {
		r.metrics.connectionRetries.Inc()
		r.logger.Warn("connection to grafana failed, retrying",
			"attempt", attempt,
			"max_attempts", r.retry.attempts,
			"retry_in", next,
			"error", err,
		)
	}
	return r
}

// Run reconciles every interval until the context is canceled. A failed cycle
// is logged and the next cycle starts from scratch.
func (r *reconciler) Run(ctx context.Context) error {
	for {
		r.logger.Info("starting token check/creation cycle")
		if err := r.reconcile(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("token check/creation cycle failed", "error", err)
		}
		r.logger.Info("sleeping until next cycle", "interval", r.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.interval):
		}
	}
}

func (r *reconciler) reconcile(ctx context.Context) error {
	result, err := r.reconcileCycle(ctx)
	r.metrics.observeCycle(result)
	return err
}

func (r *reconciler) reconcileCycle(ctx context.Context) (string, error) {
	var (
		sa  serviceAccount
		res resolution
	)
	err := r.retry.do(ctx, func(ctx context.Context, attempt int) error {
		r.logger.Info("connecting to grafana API",
			"attempt", attempt,
			"max_attempts", r.retry.attempts,
			"url", redactURL(r.config.GrafanaURL),
		)
		var err error
		sa, res, err = r.grafana.resolveOrCreate(ctx, r.config.ServiceAccountName, r.config.ServiceAccountRole, r.config.SearchPageSize)
		return err
	})
	switch {
	case isNotFound(err):
		return resultNotFound, fmt.Errorf("grafana API endpoint not found at %s, check the grafana version or API URL: %w",
			redactURL(r.config.GrafanaURL), err)
	case errors.Is(err, errRetriesExhausted):
		return resultRetriesExhausted, fmt.Errorf("failed to connect to grafana: %w", err)
	case err != nil:
		return resultError, err
	}

	switch res {
	case accountCreated:
		r.metrics.accountsCreated.Inc()
		if err := r.storeNewToken(ctx, sa); err != nil {
			return resultError, err
		}
		return resultCreated, nil
	case accountExisting:
		if !r.config.RemintOnMissingSecret {
			r.logger.Info("service account already exists, skipping token and secret updates", "name", sa.Name)
			return resultExisting, nil
		}
		exists, err := r.secrets.exists(ctx)
		if err != nil {
			return resultError, err
		}
		if exists {
			r.logger.Info("service account and token secret already exist", "name", sa.Name)
			return resultExisting, nil
		}
		r.logger.Warn("token secret missing for existing service account, minting a new token",
			"name", sa.Name,
			"secret", r.config.TokenSecretName,
		)
		if err := r.storeNewToken(ctx, sa); err != nil {
			return resultError, err
		}
		return resultReminted, nil
	}
	return resultError, fmt.Errorf("unexpected resolution: %s", res)
}

func (r *reconciler) storeNewToken(ctx context.Context, sa serviceAccount) error {
	tok, err := r.grafana.mintToken(ctx, sa.ID, r.config.TokenName)
	if err != nil {
		return err
	}
	r.metrics.tokensMinted.Inc()
	return r.secrets.upsert(ctx, tok.Key)
}
