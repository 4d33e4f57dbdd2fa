package throttle

import (
	"context"
	"strings"
	"time"

	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
)

const (
	DefaultWindow    = 10 * time.Minute
	DefaultThreshold = 5
	DefaultLockout   = 10 * time.Minute
)

// Status describes a source after a check or a recorded failure.
type Status struct {
	Locked     bool
	Until      time.Time
	RetryAfter time.Duration
	Failures   int
}

// Service is the login throttle. It is keyed by network source only, so
// varying the target username does not reset a source's window.
type Service struct {
	store     Store
	window    time.Duration
	threshold int
	lockout   time.Duration
	prefix    string
	now       func() time.Time
	logger    *logging.Service
}

func NewService(cfg config.ThrottleConfig, store Store, logger *logging.Service) *Service {
	s := &Service{
		store:     store,
		window:    cfg.Window,
		threshold: cfg.Threshold,
		lockout:   cfg.Lockout,
		prefix:    cfg.KeyPrefix,
		now:       time.Now,
		logger:    logger.Named("throttle"),
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.lockout <= 0 {
		s.lockout = DefaultLockout
	}
	return s
}

func (s *Service) key(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		source = "unknown"
	}
	if s.prefix == "" {
		return source
	}
	return s.prefix + ":" + source
}

// IsLocked reports whether source is currently locked out. An expired lock
// clears the source's window.
func (s *Service) IsLocked(ctx context.Context, source string) (Status, error) {
	key := s.key(source)
	now := s.now()

	until, ok, err := s.store.LockedUntil(ctx, key)
	if err != nil {
		return Status{}, err
	}
	if ok {
		if now.Before(until) {
			return lockedStatus(now, until, s.threshold), nil
		}
		if err := s.store.Clear(ctx, key); err != nil {
			return Status{}, err
		}
		s.logger.Debug("source lock expired", zap.String("source", source))
		return Status{}, nil
	}

	count, err := s.store.Failures(ctx, key, now, s.window)
	if err != nil {
		return Status{}, err
	}
	if count >= s.threshold {
		until := now.Add(s.lockout)
		if err := s.store.Lock(ctx, key, until); err != nil {
			return Status{}, err
		}
		return lockedStatus(now, until, count), nil
	}

	return Status{Failures: count}, nil
}

// RecordFailure appends a failure for source. Reaching the threshold locks
// the source for the lockout period from this failure.
func (s *Service) RecordFailure(ctx context.Context, source string) (Status, error) {
	key := s.key(source)
	now := s.now()

	count, err := s.store.AddFailure(ctx, key, now, s.window)
	if err != nil {
		return Status{}, err
	}

	if count < s.threshold {
		return Status{Failures: count}, nil
	}

	until := now.Add(s.lockout)
	if err := s.store.Lock(ctx, key, until); err != nil {
		return Status{}, err
	}

	s.logger.Warn("source locked out after repeated login failures",
		zap.String("source", source),
		zap.Int("failures", count),
		zap.Time("locked_until", until))

	return lockedStatus(now, until, count), nil
}

// RecordSuccess clears the failure window and any lock for source.
func (s *Service) RecordSuccess(ctx context.Context, source string) error {
	return s.store.Clear(ctx, s.key(source))
}

// Reset is the operator unlock for a source.
func (s *Service) Reset(ctx context.Context, source string) error {
	if err := s.store.Clear(ctx, s.key(source)); err != nil {
		return err
	}
	s.logger.Info("source throttle reset", zap.String("source", source))
	return nil
}

func (s *Service) Threshold() int {
	return s.threshold
}

func lockedStatus(now, until time.Time, failures int) Status {
	retry := until.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return Status{Locked: true, Until: until, RetryAfter: retry, Failures: failures}
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the
// Retry-After header.
func (s Status) RetryAfterSeconds() int {
	secs := int(s.RetryAfter / time.Second)
	if s.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
