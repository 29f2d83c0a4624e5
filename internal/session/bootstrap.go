package session

import (
	"context"
	"strings"
)

// View identifies the initial surface the widget should render.
type View string

const (
	ViewChat    View = "chat"
	ViewLogin   View = "login"
	ViewLanding View = "landing"
)

// UserDirectory answers identity questions during session bootstrap.
type UserDirectory interface {
	StatusByNickname(ctx context.Context, nickname string) (string, error)
}

// ResolveInitialView routes to the correct initial surface from the
// externally supplied identity, the embedding flag, and the locally persisted
// nickname. It reads no state and has no side effects.
func ResolveInitialView(externalIdentity string, embedded bool, persistedNickname string) View {
	if strings.TrimSpace(externalIdentity) != "" || strings.TrimSpace(persistedNickname) != "" {
		return ViewChat
	}
	if embedded {
		return ViewLogin
	}
	return ViewLanding
}

// ValidateResume re-checks a persisted nickname against the account's current
// status. The cached nickname alone is never sufficient to re-enter chat: an
// account rejected since the last visit is bounced back to login.
func ValidateResume(ctx context.Context, directory UserDirectory, nickname, approvedStatus string) (View, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return ViewLogin, nil
	}

	status, err := directory.StatusByNickname(ctx, nickname)
	if err != nil {
		return ViewLogin, err
	}

	if status != approvedStatus {
		return ViewLogin, nil
	}

	return ViewChat, nil
}
