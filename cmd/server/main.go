package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/socialbridge/socialbridge/connect"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/credentials/sqliterepo"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/platforms/facebook"
	"github.com/socialbridge/socialbridge/platforms/google"
	"github.com/socialbridge/socialbridge/platforms/instagram"
	"github.com/socialbridge/socialbridge/platforms/linkedin"
	"github.com/socialbridge/socialbridge/platforms/twitter"
	"github.com/socialbridge/socialbridge/platforms/youtube"
	"github.com/socialbridge/socialbridge/publish"
	"github.com/socialbridge/socialbridge/refresh"
	"github.com/socialbridge/socialbridge/server"
	"github.com/socialbridge/socialbridge/statetoken"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	displayAppname(c.GetAppName())
	logger := newLogger(c)

	repo, err := sqliterepo.New(filepath.Join(c.GetDataFolder(), "credentials.db"))
	if err != nil {
		return fmt.Errorf("sqliterepo.New: %w", err)
	}
	defer repo.Close()

	adapters := platforms.Registry{
		credentials.PlatformTwitter:   twitter.New(c.GetTwitterKeys()),
		credentials.PlatformGoogle:    google.New(c.GetGoogleKeys()),
		credentials.PlatformLinkedIn:  linkedin.New(c.GetLinkedInKeys()),
		credentials.PlatformFacebook:  facebook.New(c.GetFacebookKeys()),
		credentials.PlatformYouTube:   youtube.New(c.GetYouTubeKeys()),
		credentials.PlatformInstagram: instagram.New(c.GetInstagramKeys()),
	}

	codec := statetoken.New([]byte(c.GetStateSigningKey()), c.GetStateIssuer(), c.GetStateAudience(), c.GetStateTokenTTL())
	refresher := refresh.NewManager(repo, adapters, c.GetRefreshSkew())
	sessions := connect.NewSessionIssuer([]byte(c.GetSessionSigningKey()), c.GetStateIssuer(), c.GetSessionTokenExpiry())
	connects := connect.NewService(codec, repo, adapters, refresher, sessions, c.GetDefaultReturnAddress(), logger)
	publisher := publish.NewService(adapters, refresher, publish.DefaultPolicies, logger)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: server.New(c, connects, publisher, logger)}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newLogger(c config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
