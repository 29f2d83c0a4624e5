package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/velora-im/velora-chat-api/internal/config"
	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/session"
)

// overrideSchema constrains what a host page may override before widget
// initialization. Unknown keys are rejected outright.
const overrideSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"backend_url": {"type": "string", "maxLength": 512},
		"bot_persona": {"type": "string", "maxLength": 2000},
		"css_class": {"type": "string", "maxLength": 128},
		"features": {
			"type": "object",
			"additionalProperties": {"type": "boolean"}
		}
	}
}`

// EmbedService resolves the effective widget configuration for a host page.
type EmbedService interface {
	Bootstrap(payload dto.EmbedBootstrapRequest, embedded bool, persistedNickname string) (dto.EmbedBootstrapResponse, error)
}

type embedService struct {
	cfg    config.Config
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewEmbedService compiles the override schema and constructs the service.
func NewEmbedService(cfg config.Config, logger zerolog.Logger) (EmbedService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("overrides.json", strings.NewReader(overrideSchema)); err != nil {
		return nil, fmt.Errorf("failed to register override schema: %w", err)
	}

	schema, err := compiler.Compile("overrides.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile override schema: %w", err)
	}

	return &embedService{
		cfg:    cfg,
		schema: schema,
		logger: logger.With().Str("component", "embed_service").Logger(),
	}, nil
}

// Bootstrap validates host-page overrides and returns the effective widget
// options plus the initial view for this visitor.
func (s *embedService) Bootstrap(payload dto.EmbedBootstrapRequest, embedded bool, persistedNickname string) (dto.EmbedBootstrapResponse, error) {
	response := dto.EmbedBootstrapResponse{
		BotNickname: s.cfg.BotNickname,
		BotPersona:  s.cfg.BotPersona,
		CSSClass:    s.cfg.WidgetCSSClass,
		Features:    make(map[string]bool, len(s.cfg.Features)),
	}
	for name, enabled := range s.cfg.Features {
		response.Features[name] = enabled
	}

	if len(payload.Overrides) > 0 {
		if err := s.validateOverrides(payload.Overrides); err != nil {
			return dto.EmbedBootstrapResponse{}, err
		}

		if value, ok := payload.Overrides["backend_url"].(string); ok {
			response.BackendURL = value
		}
		if value, ok := payload.Overrides["bot_persona"].(string); ok {
			response.BotPersona = value
		}
		if value, ok := payload.Overrides["css_class"].(string); ok {
			response.CSSClass = value
		}
		if features, ok := payload.Overrides["features"].(map[string]interface{}); ok {
			for name, raw := range features {
				if enabled, ok := raw.(bool); ok {
					response.Features[name] = enabled
				}
			}
		}
	}

	if payload.CSSClass != "" {
		response.CSSClass = payload.CSSClass
	}

	view := session.ResolveInitialView(payload.ExternalIdentity, embedded, persistedNickname)
	response.InitialView = string(view)

	return response, nil
}

func (s *embedService) validateOverrides(overrides map[string]interface{}) error {
	payload, err := json.Marshal(overrides)
	if err != nil {
		return err
	}

	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return err
	}

	if err := s.schema.Validate(document); err != nil {
		return fmt.Errorf("invalid widget overrides: %w", err)
	}
	return nil
}
