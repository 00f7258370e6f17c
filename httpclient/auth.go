package httpclient

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// Auth types supported by presets.
const (
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthHeader = "header"
)

// AuthPreset is a named credential applied to outbound requests. Workflow
// metadata references presets by name only.
type AuthPreset struct {
	// Type is one of bearer, basic, or header.
	Type string `mapstructure:"type"`

	// Token is the bearer token (bearer) or header value (header).
	Token string `mapstructure:"token"`

	// Username and Password are used for basic auth.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Header is the header name for the header type, e.g. "X-Api-Key".
	Header string `mapstructure:"header"`
}

// Validate checks the preset is well formed.
func (p AuthPreset) Validate() error {
	switch p.Type {
	case AuthBearer:
		if p.Token == "" {
			return fmt.Errorf("bearer preset requires a token")
		}
	case AuthBasic:
		if p.Username == "" {
			return fmt.Errorf("basic preset requires a username")
		}
	case AuthHeader:
		if p.Header == "" || p.Token == "" {
			return fmt.Errorf("header preset requires header and token")
		}
	default:
		return fmt.Errorf("unknown auth type %q", p.Type)
	}
	return nil
}

// apply sets the preset's credential on the request.
func (p AuthPreset) apply(req *http.Request) {
	switch p.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+p.Token)
	case AuthBasic:
		credentials := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + p.Password))
		req.Header.Set("Authorization", "Basic "+credentials)
	case AuthHeader:
		req.Header.Set(p.Header, p.Token)
	}
}
