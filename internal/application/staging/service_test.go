package staging

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ynodev/empowerpwd-api/internal/domain"
)

// --- mock ---

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	return m.Called(ctx, key, r, contentType).Error(0)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	return m.Called(ctx, prefix).Error(0)
}

// --- helpers ---

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockObjectStore) Service {
	return NewService(store, func() time.Time { return testNow })
}

func newSession(flow domain.FlowKind) *domain.WizardSession {
	return &domain.WizardSession{
		SessionID:   "sess1",
		Flow:        flow,
		Answers:     map[string]string{},
		ListAnswers: map[string][]string{},
		Errors:      map[string]string{},
	}
}

func input(docType, filename string, size int64) StageInput {
	return StageInput{
		Type:     docType,
		Filename: filename,
		Size:     size,
		Reader:   strings.NewReader("content"),
	}
}

// --- tests ---

func TestStageAcceptsValidFile(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "staging/sess1/pwdId/")
	}), mock.Anything, "application/pdf").Return(nil)

	doc, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "pwd-card.pdf", 2<<20))
	require.NoError(t, err)
	assert.Empty(t, reasons)
	require.NotNil(t, doc)
	assert.Equal(t, domain.DocPwdID, doc.Type)
	assert.Equal(t, "pwd-card.pdf", doc.Name)
	assert.Equal(t, "pdf", doc.Extension)
	assert.Len(t, sess.Documents, 1)
}

func TestStageRejectsOversizedFile(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	doc, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "scan.pdf", 6<<20))
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, reasons, "File size must not exceed 5 MB")
	assert.Empty(t, sess.Documents)
	assert.Equal(t, "File size must not exceed 5 MB", sess.Errors["pwdId"])
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStageAcceptsAtTheLimit(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "scan.pdf", domain.MaxDocumentSize))
	require.NoError(t, err)
	assert.Empty(t, reasons)
}

func TestStageRejectsEmptyFile(t *testing.T) {
	svc := newTestService(new(mockObjectStore))
	sess := newSession(domain.FlowJobSeeker)

	_, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "scan.pdf", 0))
	require.NoError(t, err)
	assert.Contains(t, reasons, "File is empty")
}

func TestStageRejectsDisallowedExtension(t *testing.T) {
	svc := newTestService(new(mockObjectStore))
	sess := newSession(domain.FlowJobSeeker)

	_, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "malware.exe", 1024))
	require.NoError(t, err)
	assert.Contains(t, reasons, "Only JPG, JPEG, PNG and PDF files are allowed")
}

func TestStageRejectsMissingType(t *testing.T) {
	svc := newTestService(new(mockObjectStore))
	sess := newSession(domain.FlowJobSeeker)

	_, reasons, err := svc.Stage(context.Background(), sess, input("", "scan.pdf", 1024))
	require.NoError(t, err)
	assert.Equal(t, []string{"Please select a document type"}, reasons)
	// A rejection without a slot must not create an error entry keyed on "".
	assert.Empty(t, sess.Errors)
}

func TestStageRejectsForeignSlot(t *testing.T) {
	svc := newTestService(new(mockObjectStore))
	sess := newSession(domain.FlowEmployer)

	_, reasons, err := svc.Stage(context.Background(), sess, input("pwdId", "scan.pdf", 1024))
	require.NoError(t, err)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "not accepted")
}

func TestStageReplacesSameSlot(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Stage(context.Background(), sess, input("pwdId", "first.pdf", 1024))
	require.NoError(t, err)
	firstKey := sess.Documents[0].Key

	_, _, err = svc.Stage(context.Background(), sess, input("pwdId", "second.pdf", 1024))
	require.NoError(t, err)

	require.Len(t, sess.Documents, 1)
	assert.Equal(t, "second.pdf", sess.Documents[0].Name)
	store.AssertCalled(t, "Delete", mock.Anything, firstKey)
}

func TestOthersSlotAccumulates(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Stage(context.Background(), sess, input("others", "cert-a.pdf", 1024))
	require.NoError(t, err)
	_, _, err = svc.Stage(context.Background(), sess, input("others", "cert-b.pdf", 1024))
	require.NoError(t, err)

	assert.Len(t, sess.DocumentsOfType(domain.DocOthers), 2)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestStagingIdentityProofClearsDocumentsError(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)
	sess.Errors["documents"] = "Please upload at least one form of identification"

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Stage(context.Background(), sess, input("validId", "id.png", 1024))
	require.NoError(t, err)
	assert.Empty(t, sess.Errors["documents"])
}

func TestUnstageRoundTrip(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Stage(context.Background(), sess, input("pwdId", "scan.pdf", 1024))
	require.NoError(t, err)
	key := sess.Documents[0].Key

	require.NoError(t, svc.Unstage(context.Background(), sess, "pwdId", 0))
	assert.Empty(t, sess.Documents)
	store.AssertCalled(t, "Delete", mock.Anything, key)
}

func TestUnstageOthersByIndex(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)

	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, mock.Anything).Return(nil)

	_, _, err := svc.Stage(context.Background(), sess, input("others", "cert-a.pdf", 1024))
	require.NoError(t, err)
	_, _, err = svc.Stage(context.Background(), sess, input("others", "cert-b.pdf", 1024))
	require.NoError(t, err)

	require.NoError(t, svc.Unstage(context.Background(), sess, "others", 1))
	remaining := sess.DocumentsOfType(domain.DocOthers)
	require.Len(t, remaining, 1)
	assert.Equal(t, "cert-a.pdf", remaining[0].Name)
}

func TestUnstageUnknownSlot(t *testing.T) {
	svc := newTestService(new(mockObjectStore))
	sess := newSession(domain.FlowJobSeeker)

	err := svc.Unstage(context.Background(), sess, "pwdId", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClearRemovesPrefix(t *testing.T) {
	store := new(mockObjectStore)
	svc := newTestService(store)
	sess := newSession(domain.FlowJobSeeker)
	sess.Documents = []domain.StagedDocument{{Type: domain.DocPwdID, Key: "staging/sess1/pwdId/x.pdf"}}

	store.On("DeletePrefix", mock.Anything, "staging/sess1/").Return(nil)

	require.NoError(t, svc.Clear(context.Background(), sess))
	assert.Empty(t, sess.Documents)
	store.AssertCalled(t, "DeletePrefix", mock.Anything, "staging/sess1/")
}
