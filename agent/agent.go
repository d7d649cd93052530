package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nstehr/masp/ipc"
	"github.com/nstehr/masp/journal"
	"github.com/nstehr/masp/model"
	"github.com/nstehr/masp/telemetry"
)

// RuleSource learns the game's capability catalog.
type RuleSource interface {
	LearnRules(ctx context.Context) (model.Catalog, error)
}

// Author turns a catalog into a strategy candidate. It must not fail.
type Author interface {
	Author(ctx context.Context, catalog model.Catalog) model.Candidate
}

// Validator dry-runs a candidate.
type Validator interface {
	Validate(c model.Candidate) model.Validated
}

// Dialer opens the connection to the game server.
type Dialer func(ctx context.Context) (*ipc.Connection, error)

// Outcome summarizes how a session ended.
type Outcome string

const (
	OutcomeDeployed   Outcome = "deployed"    // server acknowledged success
	OutcomeRejected   Outcome = "rejected"    // server reported a failure
	OutcomeAborted    Outcome = "aborted"     // pipeline failed, nothing sent
	OutcomeIncomplete Outcome = "incomplete"  // sent, but no acknowledgment
	OutcomeDialFailed Outcome = "dial_failed" // never connected
)

// Report describes a finished attempt.
type Report struct {
	SessionID string
	Outcome   Outcome
	Strategy  *model.Validated // nil when no strategy was authored
	Reason    string           // server-reported or pipeline failure reason
}

// Deps are the collaborators an Agent drives.
type Deps struct {
	AgentID    string
	Oracle     RuleSource
	Author     Author
	Validator  Validator
	Dial       Dialer
	AckTimeout time.Duration
	Metrics    *telemetry.Metrics // optional
	Journal    journal.Recorder   // optional
}

// Agent drives exactly one deployment attempt over one session. Repeated
// attempts need a new Agent.
type Agent struct {
	deps Deps

	mu    sync.Mutex
	state State
	used  bool
}

func New(deps Deps) *Agent {
	if deps.AckTimeout <= 0 {
		deps.AckTimeout = 10 * time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewMetrics()
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	return &Agent{deps: deps, state: Disconnected}
}

// State returns the current session state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// fire applies ev to the state machine.
func (a *Agent) fire(ev EventKind) error {
	a.mu.Lock()
	from := a.state
	next, err := Transition(from, ev)
	a.state = next
	a.mu.Unlock()

	if err != nil {
		slog.Warn("event rejected", "event", ev, "state", from)
		return err
	}
	slog.Debug("session transition", "from", from, "event", ev, "to", next)
	return nil
}

// sessionEvent is something the connection reported while the session ran.
type sessionEvent struct {
	kind EventKind
	ack  ipc.StrategyDeployedMessage
}

// Session is the single live connection owned by one Run.
type Session struct {
	ID     string
	conn   *ipc.Connection
	events chan sessionEvent
	ctx    context.Context // cancelled when the connection drops
	cancel context.CancelFunc
	done   chan struct{} // closed when the read loop exits
}

// Run performs learn → author → validate → deploy over a fresh session
// and returns once the session is closed. The returned error is nil only
// for OutcomeDeployed.
func (a *Agent) Run(ctx context.Context) (Report, error) {
	a.mu.Lock()
	if a.used {
		a.mu.Unlock()
		return Report{}, ErrAlreadyRun
	}
	a.used = true
	a.mu.Unlock()

	started := time.Now()
	report, err := a.run(ctx)
	a.finish(ctx, started, report, err)
	return report, err
}

func (a *Agent) run(ctx context.Context) (Report, error) {
	report := Report{SessionID: uuid.NewString()}
	log := slog.With("session", report.SessionID, "agent", a.deps.AgentID)

	log.Info("connecting to game server")
	conn, err := a.deps.Dial(ctx)
	if err != nil {
		_ = a.fire(EventConnectError)
		report.Outcome = OutcomeDialFailed
		report.Reason = err.Error()
		log.Error("failed to connect to game server", "error", err)
		return report, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	sess := a.open(ctx, report.SessionID, conn)
	defer a.close(sess)

	if err := a.fire(EventConnect); err != nil {
		report.Outcome = OutcomeAborted
		return report, err
	}
	log.Info("connected to game server")

	strategy, err := a.pipeline(sess.ctx)
	if strategy.Source != "" {
		report.Strategy = &strategy
	}
	if sess.ctx.Err() != nil && ctx.Err() == nil {
		// The connection dropped while the pipeline was running.
		_ = a.fire(EventDisconnect)
		report.Outcome = OutcomeAborted
		report.Reason = "connection lost during pipeline"
		log.Warn("connection lost before deployment")
		return report, ErrDisconnected
	}
	if err != nil {
		_ = a.fire(EventPipelineFailed)
		report.Outcome = OutcomeAborted
		report.Reason = err.Error()
		log.Error("pipeline failed, aborting", "error", err)
		return report, err
	}

	if err := a.fire(EventStrategyReady); err != nil {
		report.Outcome = OutcomeAborted
		return report, err
	}
	log.Info("deploying strategy", "origin", strategy.Origin)
	if err := sess.conn.Send(ipc.TypeDeployStrategy, ipc.DeployStrategyMessage{Code: strategy.Source}); err != nil {
		_ = a.fire(EventFault)
		report.Outcome = OutcomeAborted
		report.Reason = err.Error()
		log.Error("failed to send strategy", "error", err)
		return report, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	_ = a.fire(EventPayloadSent)

	return a.awaitAck(ctx, sess, report, log)
}

// pipeline runs learn → author → validate. A rejected generated strategy is
// replaced once by the default; the default failing too aborts the cycle.
func (a *Agent) pipeline(ctx context.Context) (model.Validated, error) {
	m := a.deps.Metrics

	start := time.Now()
	catalog, err := a.deps.Oracle.LearnRules(ctx)
	m.ObserveStage(telemetry.StageOracle, start)
	if err != nil {
		return model.Validated{}, fmt.Errorf("learn rules: %w", err)
	}

	start = time.Now()
	candidate := a.deps.Author.Author(ctx, catalog)
	m.ObserveStage(telemetry.StageAuthor, start)
	m.Strategies.WithLabelValues(candidate.Origin.String()).Inc()

	validated := a.validate(candidate)
	if !validated.Valid() && candidate.Origin == model.OriginGenerated {
		slog.Warn("generated strategy invalid, retrying with default", "verdict", validated.Verdict, "reason", validated.Reason)
		m.Strategies.WithLabelValues(model.OriginDefault.String()).Inc()
		validated = a.validate(DefaultCandidate())
	}
	if !validated.Valid() {
		return validated, fmt.Errorf("%w: %s: %s", ErrNoValidStrategy, validated.Verdict, validated.Reason)
	}
	return validated, nil
}

func (a *Agent) validate(c model.Candidate) model.Validated {
	start := time.Now()
	v := a.deps.Validator.Validate(c)
	a.deps.Metrics.ObserveStage(telemetry.StageValidate, start)
	a.deps.Metrics.Validations.WithLabelValues(v.Verdict.String()).Inc()
	return v
}

func (a *Agent) awaitAck(ctx context.Context, sess *Session, report Report, log *slog.Logger) (Report, error) {
	start := time.Now()
	defer a.deps.Metrics.ObserveStage(telemetry.StageAck, start)

	timer := time.NewTimer(a.deps.AckTimeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-sess.events:
			switch ev.kind {
			case EventAckSuccess:
				_ = a.fire(EventAckSuccess)
				report.Outcome = OutcomeDeployed
				log.Info("strategy deployed successfully")
				return report, nil
			case EventAckFailure:
				_ = a.fire(EventAckFailure)
				report.Outcome = OutcomeRejected
				report.Reason = ev.ack.Error
				if report.Reason == "" {
					report.Reason = "unknown error"
				}
				log.Error("strategy deployment failed", "reason", report.Reason)
				return report, fmt.Errorf("%w: %s", ErrDeploymentRejected, report.Reason)
			case EventDisconnect:
				_ = a.fire(EventDisconnect)
				report.Outcome = OutcomeIncomplete
				report.Reason = "connection closed before acknowledgment"
				log.Warn("disconnected before acknowledgment")
				return report, ErrDisconnected
			default:
				log.Warn("ignoring event", "event", ev.kind, "state", a.State())
			}
		case <-timer.C:
			_ = a.fire(EventAckTimeout)
			report.Outcome = OutcomeIncomplete
			report.Reason = fmt.Sprintf("no acknowledgment within %s", a.deps.AckTimeout)
			log.Warn("acknowledgment timed out", "timeout", a.deps.AckTimeout)
			return report, ErrAckTimeout
		case <-ctx.Done():
			_ = a.fire(EventFault)
			report.Outcome = OutcomeIncomplete
			report.Reason = ctx.Err().Error()
			return report, ctx.Err()
		}
	}
}

// open wires the connection's handlers and starts its read loop. Nothing
// is read from the server before this point.
func (a *Agent) open(ctx context.Context, id string, conn *ipc.Connection) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		ID:     id,
		conn:   conn,
		events: make(chan sessionEvent, 4),
		ctx:    sessCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	conn.RegisterHandler(ipc.TypeStrategyDeployed, a.handleStrategyDeployed(sess))

	go func() {
		defer close(sess.done)
		if err := conn.ReadLoop(); err != nil {
			slog.Debug("session read loop ended", "session", id, "error", err)
		}
		sess.post(sessionEvent{kind: EventDisconnect})
		cancel()
	}()
	return sess
}

// close tears the connection down and waits for the read loop, so no
// goroutine outlives the session.
func (a *Agent) close(sess *Session) {
	if err := sess.conn.Close(); err != nil {
		slog.Debug("connection close", "session", sess.ID, "error", err)
	}
	<-sess.done
	sess.cancel()

	a.mu.Lock()
	if a.state != Closed {
		a.state = Closed
	}
	a.mu.Unlock()
	slog.Info("session closed", "session", sess.ID)
}

// handleStrategyDeployed turns an acknowledgment into a session event.
// The server can answer before payload_sent is applied, so Deploying
// accepts it too; the event is consumed once AwaitingAck.
func (a *Agent) handleStrategyDeployed(sess *Session) ipc.Handler {
	return func(env ipc.Envelope) (*ipc.Envelope, error) {
		if state := a.State(); state != Deploying && state != AwaitingAck {
			slog.Warn("ignoring acknowledgment", "state", state)
			return nil, nil
		}
		var ack ipc.StrategyDeployedMessage
		if err := env.Decode(&ack); err != nil {
			return nil, err
		}
		kind := EventAckFailure
		if ack.OK() {
			kind = EventAckSuccess
		}
		sess.post(sessionEvent{kind: kind, ack: ack})
		return nil, nil
	}
}

// post never blocks the read loop; the agent reads at most one decisive
// event per session, so a full buffer means the rest are irrelevant.
func (s *Session) post(ev sessionEvent) {
	select {
	case s.events <- ev:
	default:
		slog.Debug("session event dropped", "session", s.ID, "event", ev.kind)
	}
}

func (a *Agent) finish(ctx context.Context, started time.Time, report Report, runErr error) {
	a.deps.Metrics.Sessions.WithLabelValues(string(report.Outcome)).Inc()

	entry := journal.Entry{
		SessionID:  report.SessionID,
		AgentID:    a.deps.AgentID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    string(report.Outcome),
		Reason:     report.Reason,
	}
	if s := report.Strategy; s != nil {
		entry.Origin = s.Origin.String()
		entry.Verdict = s.Verdict.String()
		entry.Code = s.Source
	}

	// The journal write must not be cut short by the run's own cancellation.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := a.deps.Journal.Record(recCtx, entry); err != nil {
		slog.Warn("journal record failed", "session", report.SessionID, "error", err)
	}

	if runErr != nil && !errors.Is(runErr, ErrAlreadyRun) {
		slog.Info("attempt finished", "session", report.SessionID, "outcome", report.Outcome, "error", runErr)
		return
	}
	slog.Info("attempt finished", "session", report.SessionID, "outcome", report.Outcome)
}
