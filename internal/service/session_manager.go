package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/metrics"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/scoring"
	"golang.org/x/sync/errgroup"
)

// Session errors.
var (
	ErrSessionActive   = errors.New("student already has a running exam")
	ErrNoActiveSession = errors.New("no running exam")
	ErrShuttingDown    = errors.New("session manager is shutting down")
)

const (
	// claimGrace is added to the exam duration for the cross-instance claim.
	claimGrace = time.Minute
	// shutdownSubmitConcurrency bounds parallel store writes on shutdown.
	shutdownSubmitConcurrency = 16
)

// ExamLookup resolves exam definitions for session starts.
type ExamLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// SessionEventType names an event pushed to a session's watchers.
type SessionEventType string

const (
	EventTick      SessionEventType = "tick"
	EventSubmitted SessionEventType = "submitted"
)

// SessionEvent is pushed to watchers of a live session.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Remaining int              `json:"remaining"`
	Result    *SubmitResult    `json:"result,omitempty"`
}

// SubmitResult is the outcome of a finalized session.
type SubmitResult struct {
	Attempt   model.ExamAttempt `json:"attempt"`
	Result    scoring.Result    `json:"result"`
	Persisted bool              `json:"persisted"`
}

// liveSession is an engine session plus its countdown goroutine and watchers.
type liveSession struct {
	session  *engine.Session
	stop     chan struct{}
	stopOnce sync.Once

	subsMu sync.Mutex
	subs   map[chan SessionEvent]struct{}
	closed bool
}

func newLiveSession(s *engine.Session) *liveSession {
	return &liveSession{
		session: s,
		stop:    make(chan struct{}),
		subs:    make(map[chan SessionEvent]struct{}),
	}
}

func (l *liveSession) stopTicker() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *liveSession) subscribe() (chan SessionEvent, bool) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	if l.closed {
		return nil, false
	}
	ch := make(chan SessionEvent, 16)
	l.subs[ch] = struct{}{}
	return ch, true
}

func (l *liveSession) unsubscribe(ch chan SessionEvent) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

// broadcast never blocks. Ticks are dropped for slow watchers.
func (l *liveSession) broadcast(ev SessionEvent) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeWith delivers a final event to every watcher, evicting one stale
// event if a buffer is full, then closes the channels.
func (l *liveSession) closeWith(ev SessionEvent) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
		close(ch)
		delete(l.subs, ch)
	}
}

// SessionManager owns the live exam sessions of this instance: at most one
// per student, each with a countdown goroutine that auto-submits at zero.
type SessionManager struct {
	engine   *engine.Engine
	exams    ExamLookup
	registry SessionRegistry
	tick     time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
	starting map[uuid.UUID]struct{}
	closed   bool
}

// NewSessionManager creates a SessionManager. tick is the wall-clock length
// of one countdown second.
func NewSessionManager(
	eng *engine.Engine,
	exams ExamLookup,
	registry SessionRegistry,
	tick time.Duration,
	log zerolog.Logger,
) *SessionManager {
	if tick <= 0 {
		tick = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		engine:   eng,
		exams:    exams,
		registry: registry,
		tick:     tick,
		log:      log.With().Str("component", "session_manager").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*liveSession),
		starting: make(map[uuid.UUID]struct{}),
	}
}

// Start begins a timed session of an active exam for a student.
func (m *SessionManager) Start(ctx context.Context, studentID, examID uuid.UUID) (engine.View, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return engine.View{}, ErrShuttingDown
	}
	_, live := m.sessions[studentID]
	_, pending := m.starting[studentID]
	if live || pending {
		m.mu.Unlock()
		return engine.View{}, ErrSessionActive
	}
	m.starting[studentID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.starting, studentID)
		m.mu.Unlock()
	}()

	exam, err := m.exams.GetByID(ctx, examID)
	if err != nil {
		return engine.View{}, err
	}
	if !exam.IsActive {
		return engine.View{}, ErrExamNotActive
	}

	ttl := time.Duration(exam.DurationSeconds())*time.Second + claimGrace
	claimed, err := m.registry.Claim(ctx, studentID, examID, ttl)
	if err != nil {
		return engine.View{}, fmt.Errorf("claim session slot: %w", err)
	}
	if !claimed {
		return engine.View{}, ErrSessionActive
	}

	sess, err := m.engine.Start(ctx, studentID, exam)
	if err != nil {
		m.release(studentID)
		return engine.View{}, err
	}

	ls := newLiveSession(sess)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.release(studentID)
		return engine.View{}, ErrShuttingDown
	}
	m.sessions[studentID] = ls
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(ls)
	metrics.SessionsActive.Inc()

	m.log.Info().
		Str("student_id", studentID.String()).
		Str("exam_id", examID.String()).
		Str("session_id", sess.ID().String()).
		Int("questions", len(exam.Questions)).
		Msg("Exam session started")

	m.publish(sess, model.MonitorStarted, nil)
	return sess.Snapshot(), nil
}

// Snapshot returns the student's running session.
func (m *SessionManager) Snapshot(studentID uuid.UUID) (engine.View, error) {
	ls, err := m.get(studentID)
	if err != nil {
		return engine.View{}, err
	}
	return ls.session.Snapshot(), nil
}

// RecordAnswer stores an answer in the student's running session.
func (m *SessionManager) RecordAnswer(studentID, questionID uuid.UUID, option int) error {
	ls, err := m.get(studentID)
	if err != nil {
		return err
	}
	if err := ls.session.RecordAnswer(questionID, option); err != nil {
		return err
	}
	m.publish(ls.session, model.MonitorAnswered, nil)
	return nil
}

// ClearAnswer removes an answer from the student's running session.
func (m *SessionManager) ClearAnswer(studentID, questionID uuid.UUID) error {
	ls, err := m.get(studentID)
	if err != nil {
		return err
	}
	if err := ls.session.ClearAnswer(questionID); err != nil {
		return err
	}
	m.publish(ls.session, model.MonitorAnswered, nil)
	return nil
}

// Navigate moves the cursor by delta and returns the new position.
func (m *SessionManager) Navigate(studentID uuid.UUID, delta int) (int, error) {
	ls, err := m.get(studentID)
	if err != nil {
		return 0, err
	}
	return ls.session.Navigate(delta)
}

// GoTo moves the cursor to index and returns the clamped position.
func (m *SessionManager) GoTo(studentID uuid.UUID, index int) (int, error) {
	ls, err := m.get(studentID)
	if err != nil {
		return 0, err
	}
	return ls.session.GoTo(index)
}

// Submit finalizes the student's running session. When the attempt could not
// be stored the result is still returned together with an error wrapping
// engine.ErrPersistence; the attempt has then been queued for retry.
func (m *SessionManager) Submit(ctx context.Context, studentID uuid.UUID) (SubmitResult, error) {
	ls, err := m.get(studentID)
	if err != nil {
		return SubmitResult{}, err
	}

	attempt, err := ls.session.Submit(ctx, model.SubmitReasonManual)
	if attempt == nil {
		// Lost the race against the countdown, or already finalized.
		return SubmitResult{}, err
	}
	return m.finish(ctx, ls, attempt, err)
}

// Watch subscribes to tick and submitted events of the student's session.
// The channel is closed after the submitted event or when cancel is called.
func (m *SessionManager) Watch(studentID uuid.UUID) (<-chan SessionEvent, func(), error) {
	ls, err := m.get(studentID)
	if err != nil {
		return nil, nil, err
	}
	ch, ok := ls.subscribe()
	if !ok {
		return nil, nil, ErrNoActiveSession
	}
	return ch, func() { ls.unsubscribe(ch) }, nil
}

// ActiveInExam lists the progress of every session of an exam on this instance.
func (m *SessionManager) ActiveInExam(examID uuid.UUID) []model.MonitorEvent {
	m.mu.Lock()
	live := make([]*liveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		if ls.session.ExamID() == examID {
			live = append(live, ls)
		}
	}
	m.mu.Unlock()

	events := make([]model.MonitorEvent, 0, len(live))
	for _, ls := range live {
		events = append(events, monitorEvent(ls.session, model.MonitorStarted, nil))
	}
	return events
}

// ActiveCount returns how many sessions run on this instance.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every countdown and submits the sessions still running, so
// recorded answers are scored and stored or queued for the retry worker.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	if err := waitCtx(ctx, m.wg.Wait); err != nil {
		return err
	}

	m.mu.Lock()
	running := make([]*liveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		running = append(running, ls)
	}
	m.mu.Unlock()
	if len(running) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(shutdownSubmitConcurrency)
	for _, ls := range running {
		ls := ls
		g.Go(func() error {
			attempt, err := ls.session.Submit(ctx, model.SubmitReasonShutdown)
			if attempt == nil {
				// Submitted concurrently by the student.
				return nil
			}
			if _, err := m.finish(ctx, ls, attempt, err); err != nil {
				m.log.Warn().Err(err).Str("session_id", ls.session.ID().String()).Msg("Shutdown submission not stored yet")
			}
			return nil
		})
	}
	if err := waitCtx(ctx, func() { _ = g.Wait() }); err != nil {
		return err
	}

	m.log.Warn().Int("sessions", len(running)).Msg("Submitted running sessions on shutdown")
	return nil
}

// waitCtx runs wait in a goroutine and returns early when ctx ends.
func waitCtx(ctx context.Context, wait func()) error {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) get(studentID uuid.UUID) (*liveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[studentID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return ls, nil
}

// run drives the countdown of one session.
func (m *SessionManager) run(ls *liveSession) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ls.stop:
			return
		case <-ticker.C:
			res, err := ls.session.Tick(m.ctx, 1)
			if res.AutoSubmitted {
				if _, ferr := m.finish(m.ctx, ls, res.Attempt, err); ferr != nil {
					m.log.Warn().Err(ferr).Str("session_id", ls.session.ID().String()).Msg("Auto-submitted attempt not stored yet")
				}
				return
			}
			if err != nil {
				// Submitted through another path.
				return
			}
			ls.broadcast(SessionEvent{Type: EventTick, Remaining: res.Remaining})
		}
	}
}

// finish runs exactly once per session, by whichever caller won the submit.
func (m *SessionManager) finish(ctx context.Context, ls *liveSession, attempt *model.ExamAttempt, submitErr error) (SubmitResult, error) {
	ctx = context.WithoutCancel(ctx)
	ls.stopTicker()

	sess := ls.session
	persisted := submitErr == nil
	if errors.Is(submitErr, engine.ErrPersistence) {
		if _, err := sess.RetryPersist(ctx); err == nil {
			persisted = true
			submitErr = nil
		} else {
			m.log.Warn().Err(err).Str("submission_id", attempt.SubmissionID.String()).Msg("Attempt store rejected submission, queueing retry")
			if qerr := m.registry.EnqueuePersist(ctx, attempt); qerr != nil {
				m.log.Error().
					Err(qerr).
					Interface("attempt", attempt).
					Msg("Failed to queue attempt for retry")
			}
		}
	}

	m.mu.Lock()
	owned := m.sessions[sess.StudentID()] == ls
	if owned {
		delete(m.sessions, sess.StudentID())
	}
	m.mu.Unlock()
	m.release(sess.StudentID())

	if owned {
		metrics.SessionsActive.Dec()
	}
	metrics.SubmissionsTotal.WithLabelValues(string(attempt.SubmitReason), strconv.FormatBool(persisted)).Inc()

	result, _ := sess.Result()
	out := SubmitResult{Attempt: *attempt, Result: result, Persisted: persisted}

	ls.closeWith(SessionEvent{Type: EventSubmitted, Remaining: sess.Remaining(), Result: &out})
	m.publish(sess, model.MonitorSubmitted, &out)

	m.log.Info().
		Str("student_id", sess.StudentID().String()).
		Str("exam_id", sess.ExamID().String()).
		Str("reason", string(attempt.SubmitReason)).
		Int("score", attempt.Score).
		Int("total", attempt.TotalQuestions).
		Bool("persisted", persisted).
		Msg("Exam session submitted")

	return out, submitErr
}

func (m *SessionManager) release(studentID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.registry.Release(ctx, studentID); err != nil {
		m.log.Warn().Err(err).Str("student_id", studentID.String()).Msg("Failed to release session claim")
	}
}

func (m *SessionManager) publish(sess *engine.Session, typ model.MonitorEventType, res *SubmitResult) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.registry.Publish(ctx, monitorEvent(sess, typ, res)); err != nil {
		m.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}

func monitorEvent(sess *engine.Session, typ model.MonitorEventType, res *SubmitResult) model.MonitorEvent {
	answered, remaining := sess.Progress()
	ev := model.MonitorEvent{
		Type:          typ,
		ExamID:        sess.ExamID(),
		StudentID:     sess.StudentID(),
		AnsweredCount: answered,
		Remaining:     remaining,
		At:            time.Now().UTC(),
	}
	if res != nil {
		score, pct := res.Attempt.Score, res.Result.Percentage
		ev.Score = &score
		ev.Percentage = &pct
		ev.SubmitReason = res.Attempt.SubmitReason
	}
	return ev
}
