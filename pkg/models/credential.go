package models

// CredentialMaterial is what a CredentialResolver hands back for a
// provider: enough to authenticate one request, plus what's needed to know
// when to refresh. Invariant: if ExpiresAtMs is non-zero, AccessToken must
// be valid at least refresh-skew before that instant; the resolver enforces
// this, callers may assume it holds.
type CredentialMaterial struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAtMs  int64             `json:"expires_at_ms,omitempty"`
	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`

	// Account identity, decoded from the id token when present, else the
	// access token. Decode failure is non-fatal: fields stay empty.
	AccountID string `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	PlanType  string `json:"plan_type,omitempty"`
}

// AuthMode distinguishes a provider's credential shape.
type AuthMode string

const (
	AuthModeAPIKey   AuthMode = "api_key"
	AuthModeOAuth    AuthMode = "chatgpt"
)

// CredentialDocument is the on-disk, per-provider JSON document (spec §6).
type CredentialDocument struct {
	Version    int                 `json:"version"`
	AuthMode   AuthMode            `json:"auth_mode"`
	Issuer     string              `json:"issuer,omitempty"`
	ClientID   string              `json:"client_id,omitempty"`
	Tokens     CredentialTokens    `json:"tokens"`
	Account    *CredentialAccount  `json:"account,omitempty"`
	UpdatedAt  string              `json:"updated_at"`
	LastRefresh string             `json:"last_refresh,omitempty"`
}

type CredentialTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

type CredentialAccount struct {
	AccountID string `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	PlanType  string `json:"plan_type,omitempty"`
}
