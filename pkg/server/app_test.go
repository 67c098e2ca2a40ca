package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	"ForexDash/internal/pollcache"
	"ForexDash/internal/usecase"
	"ForexDash/pkg/config"
	applogger "ForexDash/pkg/logger"
)

type emptySource struct{}

func (emptySource) Fetch(context.Context, repository.FetchRequest) (*models.Page, error) {
	return &models.Page{Total: 0}, nil
}

func TestRunContextClosesInReverse(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	cache := pollcache.New(emptySource{}, pollcache.Config{})
	windows := usecase.NewWindowService(cache, nil, []string{"EURUSD"}, 0)

	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}
	app := New(cfg, applogger.Nop(), windows, nil, nil,
		closer("redis", nil), closer("kafka", errors.New("already closed")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool { return len(cache.Symbols()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunContext did not return")
	}
	assert.Equal(t, []string{"kafka", "redis"}, order)
}
