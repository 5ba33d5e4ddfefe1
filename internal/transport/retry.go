package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/log"
)

// RetryDialer retries connection-level dial failures with exponential backoff.
// A HandshakeError means the server was reached and answered, so it is
// returned at once.
type RetryDialer struct {
	dialer     Dialer
	maxRetries uint64
	interval   time.Duration
	logger     zerolog.Logger
}

// NewRetryDialer wraps d. maxRetries counts attempts after the first one.
func NewRetryDialer(d Dialer, maxRetries uint64, interval time.Duration) *RetryDialer {
	return &RetryDialer{
		dialer:     d,
		maxRetries: maxRetries,
		interval:   interval,
		logger:     log.L().With().Str(log.FieldComponent, "retry-dialer").Logger(),
	}
}

// Dial implements Dialer.
func (r *RetryDialer) Dial(ctx context.Context, url string) (Conn, error) {
	var (
		conn  Conn
		final error
	)

	op := func() error {
		c, err := r.dialer.Dial(ctx, url)
		if err == nil {
			conn = c
			return nil
		}
		var he *HandshakeError
		if errors.As(err, &he) || ctx.Err() != nil {
			final = err
			return nil
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().Err(err).Str(log.FieldURL, url).Dur("retry_in", wait).Msg("dial failed, retrying")
	}

	if err := backoff.RetryNotify(op, r.policy(ctx), notify); err != nil {
		return nil, err
	}
	if final != nil {
		return nil, final
	}
	return conn, nil
}

// policy never retries when maxRetries is 0; WithMaxRetries treats 0 as
// unlimited.
func (r *RetryDialer) policy(ctx context.Context) backoff.BackOff {
	if r.maxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}
