package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const closureKey = "auction:closures"

// ClosureScheduler drives auction closure. Due auctions are tracked in a
// Redis sorted set scored by end time and polled every second; a periodic
// database sweep backstops entries lost to a Redis restart. Closure itself
// is idempotent, so firing twice for the same auction is harmless.
type ClosureScheduler struct {
	redis          *redis.Client
	auctionService inbound.AuctionService
	auctionRepo    outbound.AuctionRepository
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type ClosureSchedulerParams struct {
	RedisClient    *redis.Client
	AuctionService inbound.AuctionService
	AuctionRepo    outbound.AuctionRepository
	Logger         zerolog.Logger
}

func NewClosureScheduler(params ClosureSchedulerParams) *ClosureScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &ClosureScheduler{
		redis:          params.RedisClient,
		auctionService: params.AuctionService,
		auctionRepo:    params.AuctionRepo,
		logger:         params.Logger.With().Str("component", "closure_scheduler").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ScheduleClosure registers an auction for closure at endTime. Re-scheduling
// the same auction moves its due time.
func (s *ClosureScheduler) ScheduleClosure(auctionID uuid.UUID, endTime time.Time) error {
	err := s.redis.ZAdd(s.ctx, closureKey, redis.Z{
		Score:  float64(endTime.Unix()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule auction closure")
		return fmt.Errorf("failed to schedule auction closure: %w", err)
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Time("end_time", endTime).
		Msg("Auction scheduled for closure")
	return nil
}

// Start begins the polling and fallback sweep loops
func (s *ClosureScheduler) Start() {
	s.logger.Info().Msg("Starting closure scheduler")

	s.wg.Add(2)
	go s.pollLoop()
	go s.fallbackSweepLoop()
}

// Stop gracefully stops the scheduler
func (s *ClosureScheduler) Stop() {
	s.logger.Info().Msg("Stopping closure scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *ClosureScheduler) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processDueClosures()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Closure poll loop stopped")
			return
		}
	}
}

func (s *ClosureScheduler) processDueClosures() {
	now := time.Now().Unix()

	due, err := s.redis.ZRangeByScore(s.ctx, closureKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: 10,
	}).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read due closures")
		return
	}

	for _, idStr := range due {
		// Remove the entry before dispatching so a closure that
		// outlives one poll interval is not fired again on the
		// next tick. The database fallback sweep backstops any
		// entry lost to a crash between the removal and the close.
		s.redis.ZRem(s.ctx, closureKey, idStr)

		auctionID, err := uuid.Parse(idStr)
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", idStr).Msg("Invalid auction ID in closure schedule")
			continue
		}
		go s.closeAuction(auctionID)
	}
}

// closeAuction fires one due entry. An auction whose end time moved since it
// was scheduled has been extended; it is re-registered under the new end
// time instead of closed.
func (s *ClosureScheduler) closeAuction(auctionID uuid.UUID) {
	a, err := s.auctionService.GetAuction(s.ctx, auctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to load auction for closure")
		return
	}

	if !a.IsClosed() && a.EndTime.After(time.Now()) {
		if err := s.ScheduleClosure(auctionID, a.EndTime); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to reschedule extended auction")
		}
		return
	}

	result, err := s.auctionService.CloseAuction(s.ctx, auctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close auction")
		return
	}

	logger := s.logger.Info().Str("auction_id", auctionID.String()).Str("status", result.Status)
	if result.WinnerID != nil {
		logger = logger.Str("winner_id", result.WinnerID.String())
	}
	if result.WinningAmount != nil {
		logger = logger.Float64("winning_amount", *result.WinningAmount)
	}
	logger.Msg("Auction closed by scheduler")
}

// fallbackSweepLoop closes ended auctions the sorted set no longer knows
// about, once a minute, straight from the database.
func (s *ClosureScheduler) fallbackSweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepEndedAuctions()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Closure fallback sweep stopped")
			return
		}
	}
}

func (s *ClosureScheduler) sweepEndedAuctions() {
	ended, err := s.auctionRepo.ListEnded(s.ctx, time.Now(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list ended auctions")
		return
	}

	for _, a := range ended {
		if _, err := s.auctionService.CloseAuction(s.ctx, a.ID); err != nil {
			s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Fallback sweep failed to close auction")
		}
	}
}
