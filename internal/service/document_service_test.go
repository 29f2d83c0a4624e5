package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velora-im/velora-chat-api/internal/models"
)

type uploaderStub struct {
	url string
	err error
}

func (u *uploaderStub) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	return u.url + "/" + name, nil
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestDocumentAttachAcceptsPDF(t *testing.T) {
	users := &userRepoStub{}
	user := seedUser(t, users, "alice", "alice@example.com", "correct-horse", models.UserStatusPending, false)
	svc := NewDocumentService(users, &uploaderStub{url: "https://files.example"}, testLogger())

	doc, err := svc.Attach(context.Background(), user.ID, "passport.pdf", bytes.NewReader([]byte("%PDF-1.7 minimal")))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", doc.ContentType)
	require.Equal(t, "https://files.example/passport.pdf", doc.URL)

	stored, err := users.GetByNickname(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, stored.Documents, 1)
}

func TestDocumentAttachAcceptsPNG(t *testing.T) {
	users := &userRepoStub{}
	user := seedUser(t, users, "bob", "bob@example.com", "correct-horse", models.UserStatusPending, false)
	svc := NewDocumentService(users, &uploaderStub{url: "https://files.example"}, testLogger())

	doc, err := svc.Attach(context.Background(), user.ID, "id.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Equal(t, "image/png", doc.ContentType)
}

func TestDocumentAttachRejectsUnsupportedType(t *testing.T) {
	users := &userRepoStub{}
	user := seedUser(t, users, "carol", "carol@example.com", "correct-horse", models.UserStatusPending, false)
	svc := NewDocumentService(users, &uploaderStub{url: "https://files.example"}, testLogger())

	_, err := svc.Attach(context.Background(), user.ID, "notes.txt", bytes.NewReader([]byte("plain text notes")))
	require.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestDocumentAttachSurfacesUploadFailure(t *testing.T) {
	users := &userRepoStub{}
	user := seedUser(t, users, "dave", "dave@example.com", "correct-horse", models.UserStatusPending, false)
	svc := NewDocumentService(users, &uploaderStub{err: errors.New("storage down")}, testLogger())

	_, err := svc.Attach(context.Background(), user.ID, "passport.pdf", bytes.NewReader([]byte("%PDF-1.7 minimal")))
	require.Error(t, err)

	stored, err := users.GetByNickname(context.Background(), "dave")
	require.NoError(t, err)
	require.Empty(t, stored.Documents)
}
