package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

type pinger func(context.Context) error

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	Consumers map[string]consumer
	// Pings are checked before any consumer starts.
	Pings map[string]pinger
}

// Service runs the fulfillment side of the platform: every configured
// consumer in its own goroutine until one fails or ctx ends.
type Service struct {
	logg      *logger.Logger
	consumers map[string]consumer
	pings     map[string]pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		logg:      params.Logger,
		consumers: params.Consumers,
		pings:     params.Pings,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range s.pings {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	type exit struct {
		name string
		err  error
	}
	exits := make(chan exit, len(s.consumers))
	for name, c := range s.consumers {
		go func(name string, c consumer) {
			exits <- exit{name: name, err: c.Run(ctx)}
		}(name, c)
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case e := <-exits:
		if e.err != nil && !errors.Is(e.err, context.Canceled) {
			s.logg.Error(s.logg.WithField(ctx, "consumer", e.name), "consumer stopped unexpectedly", e.err)
			return e.err
		}
		return e.err
	}
}
