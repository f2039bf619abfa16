// Package services regroupe les intégrations de stockage objet et de génération de documents.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound signale une clé absente du bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore range les webhooks bruts et les relevés de versement dans un bucket MinIO.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(client *minio.Client, bucket string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket}
}

// WebhookObjectKey range les webhooks par jour de réception.
func WebhookObjectKey(eventID, eventType string, at time.Time) string {
	return path.Join("webhooks", at.UTC().Format("2006/01/02"), eventType+"_"+eventID+".json")
}

// StatementObjectKey est l'emplacement du relevé PDF d'une demande de versement.
func StatementObjectKey(creatorID, requestID string) string {
	return path.Join("statements", creatorID, requestID+".pdf")
}

func (s *ObjectStore) put(ctx context.Context, key, contentType string, data []byte) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("MinIO non initialisé")
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// ArchiveWebhook conserve le corps signé tel que reçu.
func (s *ObjectStore) ArchiveWebhook(ctx context.Context, eventID, eventType string, payload []byte) error {
	return s.put(ctx, WebhookObjectKey(eventID, eventType, time.Now()), "application/json", payload)
}

func (s *ObjectStore) PutStatement(ctx context.Context, creatorID, requestID string, pdf []byte) error {
	return s.put(ctx, StatementObjectKey(creatorID, requestID), "application/pdf", pdf)
}

// SignedURL génère un lien de téléchargement temporaire.
func (s *ObjectStore) SignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("objet %s: %w", key, ErrObjectNotFound)
		}
		return "", fmt.Errorf("objet %s: %w", key, err)
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, duration, make(url.Values))
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// StatementURL retourne un lien temporaire vers le relevé d'une demande de versement.
func (s *ObjectStore) StatementURL(ctx context.Context, creatorID, requestID string, duration time.Duration) (string, error) {
	return s.SignedURL(ctx, StatementObjectKey(creatorID, requestID), duration)
}
