package dto

// EmbedBootstrapRequest carries host-page overrides supplied before widget
// initialization. Overrides are validated against a JSON Schema before any of
// them take effect.
type EmbedBootstrapRequest struct {
	ExternalIdentity string                 `json:"external_identity" validate:"omitempty,max=64"`
	CSSClass         string                 `json:"css_class" validate:"omitempty,max=128"`
	Overrides        map[string]interface{} `json:"overrides"`
}

// EmbedBootstrapResponse is the effective widget configuration.
type EmbedBootstrapResponse struct {
	BackendURL  string          `json:"backend_url"`
	BotNickname string          `json:"bot_nickname"`
	BotPersona  string          `json:"bot_persona"`
	CSSClass    string          `json:"css_class,omitempty"`
	InitialView string          `json:"initial_view"`
	Features    map[string]bool `json:"features"`
}
