package scheduler

import (
	"context"
	"sync"
	"time"

	"salvage-auction-service/internal/ports/inbound"

	"github.com/rs/zerolog"
)

// DeadlineSweeper periodically runs the payment deadline sweep, which sends
// due reminders and forfeits payments past the grace period. Deadline state
// is derived from timestamps at sweep time, so a missed tick only delays a
// transition, never loses it.
type DeadlineSweeper struct {
	paymentService inbound.PaymentService
	interval       time.Duration
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type DeadlineSweeperParams struct {
	PaymentService inbound.PaymentService
	Interval       time.Duration
	Logger         zerolog.Logger
}

func NewDeadlineSweeper(params DeadlineSweeperParams) *DeadlineSweeper {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &DeadlineSweeper{
		paymentService: params.PaymentService,
		interval:       interval,
		logger:         params.Logger.With().Str("component", "deadline_sweeper").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start begins the sweep loop
func (s *DeadlineSweeper) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting payment deadline sweeper")

	s.wg.Add(1)
	go s.loop()
}

// Stop gracefully stops the sweeper
func (s *DeadlineSweeper) Stop() {
	s.logger.Info().Msg("Stopping payment deadline sweeper")
	s.cancel()
	s.wg.Wait()
}

func (s *DeadlineSweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.paymentService.DeadlineSweep(s.ctx, time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("Payment deadline sweep failed")
			}
		case <-s.ctx.Done():
			s.logger.Info().Msg("Deadline sweep loop stopped")
			return
		}
	}
}
