package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ProviderKeys holds the application credentials registered with one
// provider. For the OAuth 1.0a family these are the consumer key/secret.
type ProviderKeys struct {
	ClientID     string
	ClientSecret string
}

type ProviderConfig interface {
	GetTwitterKeys() ProviderKeys
	GetGoogleKeys() ProviderKeys
	GetLinkedInKeys() ProviderKeys
	GetFacebookKeys() ProviderKeys
	GetYouTubeKeys() ProviderKeys
	GetInstagramKeys() ProviderKeys
}

// providerEnv is parsed from the environment in one pass.
type providerEnv struct {
	TwitterConsumerKey    string `env:"TWITTER_CONSUMER_KEY"`
	TwitterConsumerSecret string `env:"TWITTER_CONSUMER_SECRET"`
	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	LinkedInClientID      string `env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret  string `env:"LINKEDIN_CLIENT_SECRET"`
	FacebookAppID         string `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret     string `env:"FACEBOOK_APP_SECRET"`
	YouTubeClientID       string `env:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret   string `env:"YOUTUBE_CLIENT_SECRET"`
	InstagramAppID        string `env:"INSTAGRAM_APP_ID"`
	InstagramAppSecret    string `env:"INSTAGRAM_APP_SECRET"`
}

type Providers struct {
	vars providerEnv
}

var _ ProviderConfig = Providers{}

func NewProviders() (Providers, error) {
	var vars providerEnv
	if err := env.Parse(&vars); err != nil {
		return Providers{}, fmt.Errorf("failed to parse provider environment: %w", err)
	}
	return Providers{vars: vars}, nil
}

func (p Providers) GetTwitterKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.TwitterConsumerKey, ClientSecret: p.vars.TwitterConsumerSecret}
}

func (p Providers) GetGoogleKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.GoogleClientID, ClientSecret: p.vars.GoogleClientSecret}
}

func (p Providers) GetLinkedInKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.LinkedInClientID, ClientSecret: p.vars.LinkedInClientSecret}
}

func (p Providers) GetFacebookKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.FacebookAppID, ClientSecret: p.vars.FacebookAppSecret}
}

func (p Providers) GetYouTubeKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.YouTubeClientID, ClientSecret: p.vars.YouTubeClientSecret}
}

func (p Providers) GetInstagramKeys() ProviderKeys {
	return ProviderKeys{ClientID: p.vars.InstagramAppID, ClientSecret: p.vars.InstagramAppSecret}
}
