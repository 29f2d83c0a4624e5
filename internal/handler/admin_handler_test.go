package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/handler"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/service"
)

type mockAdminService struct {
	registrations []dto.RegistrationResponse
	decideErr     error
	audit         []dto.NotificationLogResponse
}

func (m *mockAdminService) ListRegistrations(_ context.Context) ([]dto.RegistrationResponse, error) {
	return m.registrations, nil
}

func (m *mockAdminService) Decide(_ context.Context, _ uint, _ dto.RegistrationDecisionRequest, _ string) ([]dto.RegistrationResponse, error) {
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	return m.registrations, nil
}

func (m *mockAdminService) AuditTrail(_ context.Context, _ int) ([]dto.NotificationLogResponse, error) {
	return m.audit, nil
}

type mockBroadcastService struct {
	chatResponse dto.BroadcastChatResponse
	chatErr      error
	queued       []dto.NotificationLogResponse
	queueErr     error
}

func (m *mockBroadcastService) BroadcastChat(_ context.Context, _ dto.BroadcastChatRequest) (dto.BroadcastChatResponse, error) {
	return m.chatResponse, m.chatErr
}

func (m *mockBroadcastService) QueueEmails(_ context.Context, _ dto.BroadcastEmailRequest) ([]dto.NotificationLogResponse, error) {
	return m.queued, m.queueErr
}

func newAdminApp(admin service.AdminService, broadcast service.BroadcastService) *fiber.App {
	app := fiber.New()
	handler.NewAdminHandler(admin, broadcast, zerolog.New(io.Discard)).Register(app.Group("/api/admin"))
	return app
}

func TestAdminHandlerListRegistrations(t *testing.T) {
	admin := &mockAdminService{registrations: []dto.RegistrationResponse{
		{ID: 1, Nickname: "alice", Status: models.UserStatusPending},
	}}
	app := newAdminApp(admin, &mockBroadcastService{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/registrations", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.RegistrationResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "alice", body.Data[0].Nickname)
}

func TestAdminHandlerDecide(t *testing.T) {
	admin := &mockAdminService{registrations: []dto.RegistrationResponse{
		{ID: 1, Nickname: "alice", Status: models.UserStatusApproved},
	}}
	app := newAdminApp(admin, &mockBroadcastService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/registrations/1", jsonBody(t, dto.RegistrationDecisionRequest{Status: models.UserStatusApproved}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.RegistrationResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, models.UserStatusApproved, body.Data[0].Status)
}

func TestAdminHandlerDecideNotFound(t *testing.T) {
	app := newAdminApp(&mockAdminService{decideErr: service.ErrRegistrationNotFound}, &mockBroadcastService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/registrations/42", jsonBody(t, dto.RegistrationDecisionRequest{Status: models.UserStatusRejected}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminHandlerDecideInvalidID(t *testing.T) {
	app := newAdminApp(&mockAdminService{}, &mockBroadcastService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/registrations/zero", jsonBody(t, dto.RegistrationDecisionRequest{Status: models.UserStatusApproved}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminHandlerBroadcastChatDelivered(t *testing.T) {
	broadcast := &mockBroadcastService{chatResponse: dto.BroadcastChatResponse{Delivered: []string{"general", "random"}}}
	app := newAdminApp(&mockAdminService{}, broadcast)

	resp := postJSON(t, app, "/api/admin/broadcast/chat", dto.BroadcastChatRequest{Body: "notice"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminHandlerBroadcastChatPartialFailure(t *testing.T) {
	broadcast := &mockBroadcastService{
		chatResponse: dto.BroadcastChatResponse{Delivered: []string{"general"}, Failed: []string{"random"}},
		chatErr:      errors.New("channel random: insert failed"),
	}
	app := newAdminApp(&mockAdminService{}, broadcast)

	resp := postJSON(t, app, "/api/admin/broadcast/chat", dto.BroadcastChatRequest{Body: "notice"})
	require.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)

	var body struct {
		Data dto.BroadcastChatResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, []string{"random"}, body.Data.Failed)
}

func TestAdminHandlerQueueEmails(t *testing.T) {
	broadcast := &mockBroadcastService{queued: []dto.NotificationLogResponse{
		{ID: 1, Type: models.NotificationTypeEmail, Target: "a@example.com"},
	}}
	app := newAdminApp(&mockAdminService{}, broadcast)

	resp := postJSON(t, app, "/api/admin/broadcast/email", dto.BroadcastEmailRequest{
		Recipients: []string{"a@example.com"},
		Subject:    "Notice",
		Body:       "Maintenance tonight",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminHandlerAuditTrail(t *testing.T) {
	admin := &mockAdminService{audit: []dto.NotificationLogResponse{{ID: 1, Target: "all"}}}
	app := newAdminApp(admin, &mockBroadcastService{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
