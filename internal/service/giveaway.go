// Package service implements the giveaway lifecycle: creation, joins and finalization.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"giveaway-bot/internal/draw"
	"giveaway-bot/internal/metrics"
	"giveaway-bot/internal/model"
	"giveaway-bot/internal/pkg/lock"
	"giveaway-bot/internal/repository"
	"giveaway-bot/internal/scheduler"
)

const (
	// timerFinalizeTimeout bounds a timer-triggered finalization including its announcement.
	timerFinalizeTimeout = 30 * time.Second
	// retryDelay is how long a failed timer or recovery finalization waits before retrying.
	retryDelay = 30 * time.Second
)

// JoinResult is the outcome of a join attempt.
type JoinResult int

// Join outcomes. The zero value is returned alongside errors.
const (
	JoinAccepted JoinResult = iota + 1
	JoinNotFound
	JoinAlreadyJoined
	JoinClosed
)

func (r JoinResult) String() string {
	switch r {
	case JoinAccepted:
		return "accepted"
	case JoinNotFound:
		return "not_found"
	case JoinAlreadyJoined:
		return "already_joined"
	case JoinClosed:
		return "closed"
	default:
		return "error"
	}
}

// Outcome describes how a giveaway ended.
type Outcome string

// Finalization outcomes.
const (
	OutcomeWinners        Outcome = "winners"
	OutcomeNoParticipants Outcome = "no_participants"
)

// CreateParams holds the fields of a creation request.
type CreateParams struct {
	Title           string `json:"title" validate:"required"`
	Prize           string `json:"prize" validate:"required"`
	DurationSeconds int64  `json:"duration" validate:"required,gt=0,max=315360000"`
	WinnerCount     int    `json:"winners" validate:"required,gt=0,max=100"`
}

// CreateResult is the created giveaway and whether its announcement was posted.
type CreateResult struct {
	Giveaway  *model.Giveaway
	Announced bool
}

// FinalizationResult is the stored outcome of a finalized giveaway.
type FinalizationResult struct {
	Giveaway         *model.Giveaway
	Outcome          Outcome
	Winners          []model.Participant
	AlreadyFinalized bool
	Announced        bool
}

// Option configures a GiveawayService.
type Option func(*GiveawayService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *GiveawayService) { s.now = now }
}

// WithRandom overrides the index source used to draw winners.
func WithRandom(intn draw.IntnFunc) Option {
	return func(s *GiveawayService) { s.intn = intn }
}

// WithScheduler overrides the expiry scheduler.
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *GiveawayService) { s.scheduler = sched }
}

// GiveawayService owns the giveaway set and drives every state change.
// Join, finalization and announcement-ref updates for one giveaway are
// serialized by a per-giveaway lock; every change is saved before it is visible.
type GiveawayService struct {
	reg       *registry
	notifier  Notifier
	locks     *lock.KeyLock
	scheduler *scheduler.Scheduler
	validate  *validator.Validate
	now       func() time.Time
	intn      draw.IntnFunc
}

// NewGiveawayService loads the persisted giveaways and creates a new GiveawayService.
// A corrupt snapshot is returned as an error wrapping repository.ErrCorruptState.
func NewGiveawayService(ctx context.Context, store repository.Store, notifier Notifier, opts ...Option) (*GiveawayService, error) {
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load giveaways: %w", err)
	}

	s := &GiveawayService{
		reg:      newRegistry(store, loaded),
		notifier: notifier,
		locks:    lock.NewKeyLock(),
		validate: newValidator(),
		now:      time.Now,
		intn:     draw.CryptoIntn,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = scheduler.New()
	}

	open := 0
	for _, g := range loaded {
		if g.Status == model.StatusOpen {
			open++
		}
	}
	metrics.GiveawaysOpen.Set(float64(open))

	log.Info().Int("giveaways", len(loaded)).Int("open", open).Msg("Giveaways loaded")

	return s, nil
}

// Create validates params, persists a new open giveaway, announces it in the
// channel and then arms its expiry timer. An announcement failure is reported through
// CreateResult.Announced and does not undo the creation.
func (s *GiveawayService) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	params.Title = strings.TrimSpace(params.Title)
	params.Prize = strings.TrimSpace(params.Prize)
	if err := s.validate.Struct(params); err != nil {
		return nil, toValidationError(err)
	}

	now := s.now()
	g := &model.Giveaway{
		ID:              s.reg.nextID(),
		Title:           params.Title,
		Prize:           params.Prize,
		DurationSeconds: params.DurationSeconds,
		EndTime:         now.Add(time.Duration(params.DurationSeconds) * time.Second),
		WinnerCount:     params.WinnerCount,
		Participants:    []model.Participant{},
		Status:          model.StatusOpen,
		CreatedAt:       now,
	}

	if err := s.reg.commit(ctx, g); err != nil {
		s.persistenceFailed(g.ID, "create", err)
		return nil, err
	}

	metrics.GiveawaysCreated.Inc()
	metrics.GiveawaysOpen.Inc()

	log.Info().
		Int64("giveaway_id", g.ID).
		Str("title", g.Title).
		Int64("duration", g.DurationSeconds).
		Int("winners", g.WinnerCount).
		Time("end_time", g.EndTime).
		Msg("Giveaway created")

	result := s.announceCreation(ctx, g)

	// Armed only after the announcement so results never precede it in the channel.
	s.arm(g.ID, g.EndTime)

	return result, nil
}

func (s *GiveawayService) announceCreation(ctx context.Context, g *model.Giveaway) *CreateResult {
	result := &CreateResult{Giveaway: g.Clone()}

	ref, err := s.notifier.AnnounceCreation(ctx, g.Clone())
	if err != nil {
		s.notificationFailed(g.ID, "creation", err)
		return result
	}
	result.Announced = true

	updated, err := s.setAnnouncementRef(ctx, g.ID, ref)
	if err != nil {
		// The giveaway is live and announced; only the message reference is not durable.
		s.persistenceFailed(g.ID, "announcement_ref", err)
		result.Giveaway.AnnouncementRef = ref
		return result
	}
	result.Giveaway = updated.Clone()
	return result
}

func (s *GiveawayService) setAnnouncementRef(ctx context.Context, id int64, ref string) (*model.Giveaway, error) {
	var updated *model.Giveaway
	err := s.locks.WithLock(id, func() error {
		cur, ok := s.reg.get(id)
		if !ok {
			return ErrGiveawayNotFound
		}
		next := cur.Clone()
		next.AnnouncementRef = ref
		if err := s.reg.commit(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// Join adds participant p to giveaway id. Rejections are reported as JoinResult
// values; an error is returned only when the join could not be persisted, in
// which case the participant is not recorded.
func (s *GiveawayService) Join(ctx context.Context, id int64, p model.Participant) (JoinResult, error) {
	var result JoinResult
	err := s.locks.WithLock(id, func() error {
		cur, ok := s.reg.get(id)
		if !ok {
			result = JoinNotFound
			return nil
		}
		if !cur.IsOpen(s.now()) {
			result = JoinClosed
			return nil
		}
		if cur.HasParticipant(p.UserID) {
			result = JoinAlreadyJoined
			return nil
		}

		next := cur.Clone()
		next.Participants = append(next.Participants, p)
		if err := s.reg.commit(ctx, next); err != nil {
			return err
		}
		result = JoinAccepted
		return nil
	})
	if err != nil {
		s.persistenceFailed(id, "join", err)
		metrics.JoinAttempts.WithLabelValues(JoinResult(0).String()).Inc()
		return 0, err
	}

	metrics.JoinAttempts.WithLabelValues(result.String()).Inc()
	log.Debug().
		Int64("giveaway_id", id).
		Int64("user_id", p.UserID).
		Str("result", result.String()).
		Msg("Join attempt")

	return result, nil
}

// Finalize ends giveaway id. The first call draws winners, persists the result
// and announces it; later calls return the stored result with AlreadyFinalized set.
func (s *GiveawayService) Finalize(ctx context.Context, id int64) (*FinalizationResult, error) {
	return s.finalize(ctx, id, metrics.TriggerManual)
}

// ForceFinalize ends an open giveaway early on the admin's request. A giveaway
// nobody joined yet is left open and ErrNoParticipants is returned.
func (s *GiveawayService) ForceFinalize(ctx context.Context, id int64) (*FinalizationResult, error) {
	cur, ok := s.reg.get(id)
	if !ok {
		return nil, ErrGiveawayNotFound
	}
	if cur.Status == model.StatusOpen && len(cur.Participants) == 0 {
		return nil, ErrNoParticipants
	}
	return s.finalize(ctx, id, metrics.TriggerAdmin)
}

func (s *GiveawayService) finalize(ctx context.Context, id int64, trigger string) (*FinalizationResult, error) {
	var (
		result    *FinalizationResult
		finalized *model.Giveaway
	)
	err := s.locks.WithLock(id, func() error {
		cur, ok := s.reg.get(id)
		if !ok {
			return ErrGiveawayNotFound
		}
		if cur.Status == model.StatusFinalized {
			result = resultOf(cur, true)
			return nil
		}

		winners, err := draw.Select(cur.Participants, cur.WinnerCount, s.intn)
		if err != nil {
			return fmt.Errorf("failed to draw winners: %w", err)
		}

		now := s.now()
		next := cur.Clone()
		next.Status = model.StatusFinalized
		next.Winners = winners
		next.FinalizedAt = &now
		if err := s.reg.commit(ctx, next); err != nil {
			return err
		}

		finalized = next
		result = resultOf(next, false)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPersistence) {
			s.persistenceFailed(id, "finalize", err)
		}
		return nil, err
	}
	if result.AlreadyFinalized {
		log.Debug().Int64("giveaway_id", id).Str("trigger", trigger).Msg("Giveaway already finalized")
		return result, nil
	}

	s.scheduler.Cancel(id)
	metrics.GiveawaysOpen.Dec()
	metrics.GiveawaysFinalized.WithLabelValues(string(result.Outcome), trigger).Inc()

	log.Info().
		Int64("giveaway_id", id).
		Str("trigger", trigger).
		Str("outcome", string(result.Outcome)).
		Int("participants", len(finalized.Participants)).
		Int("winners", len(result.Winners)).
		Msg("Giveaway finalized")

	result.Announced = s.announceOutcome(ctx, finalized)
	return result, nil
}

// announceOutcome posts the result once, right after the finalizing commit.
func (s *GiveawayService) announceOutcome(ctx context.Context, g *model.Giveaway) bool {
	var (
		kind string
		err  error
	)
	if len(g.Winners) == 0 {
		kind = "no_participants"
		err = s.notifier.AnnounceNoParticipants(ctx, g.Clone())
	} else {
		kind = "results"
		err = s.notifier.AnnounceResults(ctx, g.Clone(), append([]model.Participant(nil), g.Winners...))
	}
	if err != nil {
		s.notificationFailed(g.ID, kind, err)
		return false
	}
	return true
}

// Recover finalizes open giveaways whose end time passed while the process was
// down and re-arms timers for the rest. Finalizations that fail are retried later.
func (s *GiveawayService) Recover(ctx context.Context) error {
	now := s.now()
	var (
		errs    []error
		overdue int
		rearmed int
	)
	for _, g := range s.reg.list() {
		if g.Status != model.StatusOpen {
			continue
		}
		if now.Before(g.EndTime) {
			s.arm(g.ID, g.EndTime)
			rearmed++
			continue
		}

		overdue++
		if _, err := s.finalize(ctx, g.ID, metrics.TriggerRecovery); err != nil {
			errs = append(errs, fmt.Errorf("giveaway %d: %w", g.ID, err))
			s.scheduleRetry(g.ID)
		}
	}

	log.Info().
		Int("overdue", overdue).
		Int("rearmed", rearmed).
		Int("failed", len(errs)).
		Msg("Recovery sweep complete")

	return errors.Join(errs...)
}

// Get returns a copy of giveaway id.
func (s *GiveawayService) Get(id int64) (*model.Giveaway, error) {
	g, ok := s.reg.get(id)
	if !ok {
		return nil, ErrGiveawayNotFound
	}
	return g.Clone(), nil
}

// List returns copies of all giveaways ordered by id.
func (s *GiveawayService) List() []*model.Giveaway {
	all := s.reg.list()
	out := make([]*model.Giveaway, len(all))
	for i, g := range all {
		out[i] = g.Clone()
	}
	return out
}

// Stop cancels pending expiry timers and waits for running finalizations.
func (s *GiveawayService) Stop() {
	s.scheduler.Stop()
}

func (s *GiveawayService) arm(id int64, at time.Time) {
	s.scheduler.ScheduleAt(id, at, func() { s.onTimer(id) })
}

func (s *GiveawayService) scheduleRetry(id int64) {
	s.scheduler.Schedule(id, retryDelay, func() { s.onTimer(id) })
}

func (s *GiveawayService) onTimer(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), timerFinalizeTimeout)
	defer cancel()

	if _, err := s.finalize(ctx, id, metrics.TriggerTimer); err != nil {
		if errors.Is(err, ErrGiveawayNotFound) {
			return
		}
		log.Error().Err(err).Int64("giveaway_id", id).Dur("retry_in", retryDelay).Msg("Timed finalization failed")
		s.scheduleRetry(id)
	}
}

func (s *GiveawayService) persistenceFailed(id int64, op string, err error) {
	metrics.PersistenceFailures.Inc()
	log.Error().Err(err).Int64("giveaway_id", id).Str("op", op).Msg("Failed to persist giveaways")
}

func (s *GiveawayService) notificationFailed(id int64, kind string, err error) {
	metrics.NotificationFailures.WithLabelValues(kind).Inc()
	log.Error().
		Err(fmt.Errorf("%w: %w", ErrNotification, err)).
		Int64("giveaway_id", id).
		Str("kind", kind).
		Msg("Failed to announce giveaway")
}

func resultOf(g *model.Giveaway, already bool) *FinalizationResult {
	outcome := OutcomeWinners
	if len(g.Winners) == 0 {
		outcome = OutcomeNoParticipants
	}
	return &FinalizationResult{
		Giveaway:         g.Clone(),
		Outcome:          outcome,
		Winners:          append([]model.Participant{}, g.Winners...),
		AlreadyFinalized: already,
	}
}
