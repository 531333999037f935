package platformsfake

import (
	"context"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
)

var _ platforms.Adapter = (*FakeAdapter)(nil)

// FakeAdapter is a configurable platform adapter for tests. Unset funcs
// return zero values; call counters record every invocation.
type FakeAdapter struct {
	PlatformName credentials.Platform
	AuthKind     platforms.AuthKind

	BeginAuthFunc    func(ctx context.Context, callbackURL, state string) (*platforms.AuthRequest, error)
	ExchangeFunc     func(ctx context.Context, req platforms.ExchangeRequest) (*platforms.TokenSet, *platforms.Profile, error)
	RefreshFunc      func(ctx context.Context, refreshToken string) (*platforms.TokenSet, error)
	FetchProfileFunc func(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error)
	PublishFunc      func(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error)

	BeginAuthCalls int
	ExchangeCalls  int
	RefreshCalls   int
	PublishCalls   int
}

func (f *FakeAdapter) Platform() credentials.Platform {
	return f.PlatformName
}

func (f *FakeAdapter) Kind() platforms.AuthKind {
	return f.AuthKind
}

func (f *FakeAdapter) BeginAuth(ctx context.Context, callbackURL, state string) (*platforms.AuthRequest, error) {
	f.BeginAuthCalls++
	if f.BeginAuthFunc == nil {
		return &platforms.AuthRequest{URL: "https://provider.example.com/authorize"}, nil
	}
	return f.BeginAuthFunc(ctx, callbackURL, state)
}

func (f *FakeAdapter) Exchange(ctx context.Context, req platforms.ExchangeRequest) (*platforms.TokenSet, *platforms.Profile, error) {
	f.ExchangeCalls++
	if f.ExchangeFunc == nil {
		return &platforms.TokenSet{AccessToken: "fake-access"}, &platforms.Profile{}, nil
	}
	return f.ExchangeFunc(ctx, req)
}

func (f *FakeAdapter) Refresh(ctx context.Context, refreshToken string) (*platforms.TokenSet, error) {
	f.RefreshCalls++
	if f.RefreshFunc == nil {
		return nil, errors.ErrUnsupported
	}
	return f.RefreshFunc(ctx, refreshToken)
}

func (f *FakeAdapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	if f.FetchProfileFunc == nil {
		return &platforms.Profile{}, nil
	}
	return f.FetchProfileFunc(ctx, token)
}

func (f *FakeAdapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	f.PublishCalls++
	if f.PublishFunc == nil {
		return &platforms.PublishResult{}, nil
	}
	return f.PublishFunc(ctx, token, post)
}
