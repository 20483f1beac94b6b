// Package labels stores shipping labels in Google Cloud Storage.
package labels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const defaultPublicURL = "https://storage.googleapis.com"

// Store writes labels to a GCS bucket. Objects are immutable: a label that
// already exists under a key is kept and its URL returned.
type Store struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	publicURL string
	logger    *otelzap.Logger
}

// New opens a GCS client for bucket. publicURL is the base of returned label
// URLs and defaults to the public storage endpoint.
func New(ctx context.Context, bucket, publicURL string, logger *otelzap.Logger) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("labels: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	if publicURL == "" {
		publicURL = defaultPublicURL
	}
	return &Store{
		client:    client,
		bucket:    client.Bucket(bucket),
		name:      bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// PutLabel uploads data under key and returns the label URL.
func (s *Store) PutLabel(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			return s.objectURL(key), nil
		}
		return "", fmt.Errorf("writing label %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			s.logger.Ctx(ctx).Info("Label already stored", zap.String("key", key))
			return s.objectURL(key), nil
		}
		return "", fmt.Errorf("finalizing label %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

// Close closes the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectURL(key string) string {
	return buildURL(s.publicURL, s.name, key)
}

func buildURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + bucket + "/" + strings.Join(segments, "/")
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

var _ shipper.LabelStore = (*Store)(nil)
