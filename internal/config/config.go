package config

import "fmt"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	ProviderConfig
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Providers
}

func New() (Config, error) {
	providers, err := NewProviders()
	if err != nil {
		return nil, err
	}

	cfg := mainConfig{Providers: providers}
	// State and session tokens are capabilities. Refusing to start without
	// real secrets keeps a default deployment from signing them with a key
	// anyone can reproduce.
	if cfg.GetStateSigningKey() == "" {
		return nil, fmt.Errorf("%s must be set to a non-empty secret", stateSigningKeyVar)
	}
	if cfg.GetSessionSigningKey() == "" {
		return nil, fmt.Errorf("%s must be set to a non-empty secret", sessionSigningKeyVar)
	}
	return cfg, nil
}
