package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/semla/internal/auth"
	"github.com/shrimpsizemoose/semla/internal/datasync"
	"github.com/shrimpsizemoose/semla/internal/notify"
	"github.com/shrimpsizemoose/semla/internal/storage"
	"github.com/shrimpsizemoose/semla/internal/store"
)

// Service wires config, store, blob storage, auth and the sync layer
// together. Everything downstream takes what it needs from here.
type Service struct {
	Config   *Config
	Store    store.Store
	Blobs    storage.BlobStore
	Notifier *notify.Notifier
	Sessions *auth.Sessions
	Syncer   *datasync.Syncer
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	notifier, err := notify.New(config.Notify.RedisURL, config.Notify.ChannelTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to init notifier: %w", err)
	}

	st, err := NewStore(config, notifier)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	blobs, err := NewBlobStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob storage: %w", err)
	}

	sessions, err := auth.NewSessions(
		config.Auth.RedisURL,
		config.Auth.SessionKeyTemplate,
		time.Duration(config.Auth.SessionTTLHours)*time.Hour,
		st,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	syncer := datasync.New(st, blobs, auth.NewResolver(st))

	return &Service{
		Config:   config,
		Store:    st,
		Blobs:    blobs,
		Notifier: notifier,
		Sessions: sessions,
		Syncer:   syncer,
	}, nil
}

// Start kicks off the sync event loop: auth-state changes and table
// change notifications both land in the syncer from here on.
func (s *Service) Start(ctx context.Context) error {
	changes, err := s.Notifier.Subscribe(ctx, store.TableAssignments, store.TableSubmissions)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	go s.Syncer.Run(ctx, s.Sessions.Events(), changes)
	return nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Blobs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("blobs: %w", err))
	}
	if err := s.Notifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("notifier: %w", err))
	}
	if err := s.Sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
