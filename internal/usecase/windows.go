package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/pollcache"
	applogger "ForexDash/pkg/logger"
)

// ErrTooManyWindows is returned when subscribing past the configured window limit.
var ErrTooManyWindows = errors.New("too many windows")

// WindowService is what the HTTP layer uses to manage series windows.
type WindowService struct {
	mu         sync.Mutex // serialises the window limit check with Subscribe
	cache      *pollcache.Cache
	logger     *applogger.Logger
	defaults   []string
	maxWindows int
}

// NewWindowService subscribes defaults when Start runs. maxWindows <= 0 means no limit.
func NewWindowService(cache *pollcache.Cache, logger *applogger.Logger, defaults []string, maxWindows int) *WindowService {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &WindowService{cache: cache, logger: logger, defaults: defaults, maxWindows: maxWindows}
}

// Start subscribes the default symbols and drives the cache clock until ctx is done.
func (s *WindowService) Start(ctx context.Context) error {
	for _, sym := range s.defaults {
		if _, err := s.Subscribe(sym); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	s.logger.Info("windows started", applogger.Strings("symbols", s.cache.Symbols()))
	err := s.cache.Run(ctx)
	_ = s.cache.Close()
	return err
}

func normalize(symbol string) string { return strings.TrimSpace(symbol) }

func (s *WindowService) Subscribe(symbol string) (models.WindowSnapshot, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return models.WindowSnapshot{}, fmt.Errorf("empty symbol")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxWindows > 0 {
		if _, err := s.cache.Snapshot(symbol); errors.Is(err, pollcache.ErrUnknownSymbol) &&
			len(s.cache.Symbols()) >= s.maxWindows {
			return models.WindowSnapshot{}, ErrTooManyWindows
		}
	}
	return s.cache.Subscribe(symbol), nil
}

func (s *WindowService) Unsubscribe(symbol string) error {
	return s.cache.Unsubscribe(normalize(symbol))
}

func (s *WindowService) Refresh(symbol string) (models.WindowSnapshot, error) {
	symbol = normalize(symbol)
	if err := s.cache.Refresh(symbol); err != nil {
		return models.WindowSnapshot{}, err
	}
	return s.cache.Snapshot(symbol)
}

func (s *WindowService) Reset(symbol string) (models.WindowSnapshot, error) {
	symbol = normalize(symbol)
	if err := s.cache.Reset(symbol); err != nil {
		return models.WindowSnapshot{}, err
	}
	return s.cache.Snapshot(symbol)
}

func (s *WindowService) Snapshot(symbol string) (models.WindowSnapshot, error) {
	return s.cache.Snapshot(normalize(symbol))
}

func (s *WindowService) List() []models.WindowSnapshot { return s.cache.Snapshots() }

// Watch streams snapshots of a subscribed symbol. The stop func must be called.
func (s *WindowService) Watch(symbol string) (<-chan models.WindowSnapshot, func(), error) {
	symbol = normalize(symbol)
	if _, err := s.cache.Snapshot(symbol); err != nil {
		return nil, nil, err
	}
	ch, stop := s.cache.Watch(symbol)
	return ch, stop, nil
}
