package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

const maxDocumentBytes = 10 << 20

// ErrUnsupportedDocument indicates the uploaded file type is not accepted.
var ErrUnsupportedDocument = errors.New("unsupported document type")

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

// FileUploader sends a document to external storage and returns its URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// DocumentService stores registration compliance documents.
type DocumentService interface {
	Attach(ctx context.Context, userID uint, name string, reader io.Reader) (models.RegistrationDocument, error)
}

type documentService struct {
	users    repository.UserRepository
	uploader FileUploader
	logger   zerolog.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(users repository.UserRepository, uploader FileUploader, logger zerolog.Logger) DocumentService {
	return &documentService{
		users:    users,
		uploader: uploader,
		logger:   logger.With().Str("component", "document_service").Logger(),
	}
}

// Attach sniffs the document type, uploads the file to external storage, and
// records the resulting URL against the registration.
func (s *documentService) Attach(ctx context.Context, userID uint, name string, reader io.Reader) (models.RegistrationDocument, error) {
	payload, err := io.ReadAll(io.LimitReader(reader, maxDocumentBytes+1))
	if err != nil {
		return models.RegistrationDocument{}, err
	}
	if len(payload) > maxDocumentBytes {
		return models.RegistrationDocument{}, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}

	detected := mimetype.Detect(payload)
	if _, ok := allowedDocumentTypes[detected.String()]; !ok {
		return models.RegistrationDocument{}, ErrUnsupportedDocument
	}

	url, err := s.uploader.Upload(ctx, name, bytes.NewReader(payload))
	if err != nil {
		return models.RegistrationDocument{}, err
	}

	doc := models.RegistrationDocument{
		UserID:      userID,
		Name:        name,
		URL:         url,
		ContentType: detected.String(),
	}
	if err := s.users.AttachDocument(ctx, &doc); err != nil {
		return models.RegistrationDocument{}, err
	}

	s.logger.Info().Uint("user_id", userID).Str("content_type", doc.ContentType).Msg("registration document attached")

	return doc, nil
}
