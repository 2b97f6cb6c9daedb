// Package staging validates and holds candidate document uploads before the
// final submission. Bytes live in the object store under a per-session
// staging prefix; only metadata rides on the wizard session.
package staging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ynodev/empowerpwd-api/internal/domain"
	s3infra "github.com/ynodev/empowerpwd-api/internal/infrastructure/s3"
	"github.com/ynodev/empowerpwd-api/internal/pkg/id"
)

// ObjectStore is the slice of the S3 store the staging area needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// StageInput describes one candidate upload.
type StageInput struct {
	Type     string
	Filename string
	Size     int64
	Reader   io.Reader
}

// Service is the document staging area.
type Service interface {
	// Stage validates the candidate and, if accepted, stores it and records
	// it on the session. Rejections are returned as reasons and mutate
	// nothing beyond the slot's error entry.
	Stage(ctx context.Context, s *domain.WizardSession, in StageInput) (*domain.StagedDocument, []string, error)
	// Unstage removes a staged document and clears any error surfaced for
	// that slot. index selects within the accumulating "others" list.
	Unstage(ctx context.Context, s *domain.WizardSession, docType string, index int) error
	// Clear removes every staged object for the session.
	Clear(ctx context.Context, s *domain.WizardSession) error
}

type service struct {
	store ObjectStore
	now   func() time.Time
}

func NewService(store ObjectStore, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{store: store, now: now}
}

// StagingPrefix is where a session's candidate uploads live until
// submission promotes them or abandonment removes them.
func StagingPrefix(sessionID string) string {
	return fmt.Sprintf("staging/%s/", sessionID)
}

func (s *service) Stage(ctx context.Context, sess *domain.WizardSession, in StageInput) (*domain.StagedDocument, []string, error) {
	docType := domain.DocumentType(in.Type)
	reasons := s.reject(sess, docType, in)
	if len(reasons) > 0 {
		if in.Type != "" {
			sess.Errors[in.Type] = strings.Join(reasons, "; ")
		}
		return nil, reasons, nil
	}

	ext := extensionOf(in.Filename)
	key := StagingPrefix(sess.SessionID) + string(docType) + "/" + id.New() + "." + ext
	if err := s.store.Upload(ctx, key, in.Reader, s3infra.ContentTypeFor(ext)); err != nil {
		return nil, nil, fmt.Errorf("stage document: %w", err)
	}

	doc := domain.StagedDocument{
		Type:      docType,
		Key:       key,
		Name:      path.Base(in.Filename),
		SizeBytes: in.Size,
		Extension: ext,
		StagedAt:  s.now().UTC(),
	}

	// Single slot per type: a new upload replaces the old one. The "others"
	// slot accumulates instead.
	if docType != domain.DocOthers {
		for i, existing := range sess.Documents {
			if existing.Type == docType {
				if err := s.store.Delete(ctx, existing.Key); err != nil {
					slog.Warn("failed to delete replaced staged document", "key", existing.Key, "err", err)
				}
				sess.Documents = append(sess.Documents[:i], sess.Documents[i+1:]...)
				break
			}
		}
	}
	sess.Documents = append(sess.Documents, doc)

	delete(sess.Errors, string(docType))
	for _, t := range domain.IdentityProofTypes(sess.Flow) {
		if t == docType {
			delete(sess.Errors, "documents")
			break
		}
	}
	return &doc, nil, nil
}

// reject returns every reason the candidate fails validation, leaving the
// session untouched.
func (s *service) reject(sess *domain.WizardSession, docType domain.DocumentType, in StageInput) []string {
	var reasons []string
	if in.Type == "" {
		return []string{"Please select a document type"}
	}
	allowed := false
	for _, t := range domain.DocumentTypesFor(sess.Flow) {
		if t == docType {
			allowed = true
			break
		}
	}
	if !allowed {
		return []string{fmt.Sprintf("Document type %q is not accepted for this registration", in.Type)}
	}
	if ext := extensionOf(in.Filename); !domain.AllowedExtensions[ext] {
		reasons = append(reasons, "Only JPG, JPEG, PNG and PDF files are allowed")
	}
	if in.Size <= 0 {
		reasons = append(reasons, "File is empty")
	} else if in.Size > domain.MaxDocumentSize {
		reasons = append(reasons, "File size must not exceed 5 MB")
	}
	return reasons
}

func (s *service) Unstage(ctx context.Context, sess *domain.WizardSession, docType string, index int) error {
	t := domain.DocumentType(docType)
	seen := 0
	for i, d := range sess.Documents {
		if d.Type != t {
			continue
		}
		if t == domain.DocOthers && seen != index {
			seen++
			continue
		}
		if err := s.store.Delete(ctx, d.Key); err != nil {
			return fmt.Errorf("unstage document: %w", err)
		}
		sess.Documents = append(sess.Documents[:i], sess.Documents[i+1:]...)
		delete(sess.Errors, docType)
		return nil
	}
	return fmt.Errorf("no staged document of type %q: %w", docType, domain.ErrNotFound)
}

func (s *service) Clear(ctx context.Context, sess *domain.WizardSession) error {
	sess.Documents = nil
	return s.store.DeletePrefix(ctx, StagingPrefix(sess.SessionID))
}

func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}
