package internal

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	tokenSecretKey = "token"
	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "grafana-token-sidecar"
)

type secretsClient interface {
	Get(context.Context, string, metav1.GetOptions) (*corev1.Secret, error)
	Create(context.Context, *corev1.Secret, metav1.CreateOptions) (*corev1.Secret, error)
	Update(context.Context, *corev1.Secret, metav1.UpdateOptions) (*corev1.Secret, error)
}

// tokenSecrets writes the token secret. The secret is wholly owned by the
// sidecar: writes replace it rather than merging keys.
type tokenSecrets struct {
	client    secretsClient
	logger    *slog.Logger
	metrics   *metrics
	namespace string
	name      string
}

func (s *tokenSecrets) build(key string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.name,
			Namespace: s.namespace,
			Labels:    map[string]string{managedByLabel: managedByValue},
		},
		Type: corev1.SecretTypeOpaque,
		// The API server base64 encodes data on the wire.
		Data: map[string][]byte{tokenSecretKey: []byte(key)},
	}
}

// upsert creates the secret, or replaces it if it already exists.
func (s *tokenSecrets) upsert(ctx context.Context, key string) error {
	_, err := s.client.Create(ctx, s.build(key), metav1.CreateOptions{})
	if err == nil {
		s.logger.Info("created secret", "namespace", s.namespace, "name", s.name)
		s.metrics.secretWrites.WithLabelValues("create").Inc()
		return nil
	}
	if !errors.IsAlreadyExists(err) {
		return fmt.Errorf("creating secret %s/%s: %w", s.namespace, s.name, err)
	}
	if _, err := s.client.Update(ctx, s.build(key), metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("updating secret %s/%s: %w", s.namespace, s.name, err)
	}
	s.logger.Info("updated secret", "namespace", s.namespace, "name", s.name)
	s.metrics.secretWrites.WithLabelValues("update").Inc()
	return nil
}

// exists reports whether the secret exists and holds a non-empty token.
func (s *tokenSecrets) exists(ctx context.Context) (bool, error) {
	secret, err := s.client.Get(ctx, s.name, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("getting secret %s/%s: %w", s.namespace, s.name, err)
	}
	return len(secret.Data[tokenSecretKey]) > 0, nil
}
