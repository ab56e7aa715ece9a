package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/guardrail"
	"github.com/ashureev/skydesk/internal/identity"
	"github.com/ashureev/skydesk/internal/reasoning"
	"github.com/ashureev/skydesk/internal/specialist"
)

// DefaultMaxReasoningRounds bounds re-dispatches within one turn.
const DefaultMaxReasoningRounds = 4

// StateStore loads and saves conversation state.
type StateStore interface {
	Get(ctx context.Context, conversationID string) (*domain.ConversationState, bool)
	Save(ctx context.Context, state *domain.ConversationState) bool
}

// ProfileLoader builds the initial context of a new conversation.
type ProfileLoader interface {
	Load(ctx context.Context, token string) (domain.AirlineContext, error)
}

// TurnObserver is notified of every completed turn, in order per conversation.
type TurnObserver interface {
	TurnCompleted(conversationID string, result *TurnResult)
}

// Options configures an Orchestrator.
type Options struct {
	LockMode           LockMode
	LockTimeout        time.Duration
	MaxReasoningRounds int
	Profiles           ProfileLoader
	ConversationLog    ConversationLogger
	Observers          []TurnObserver
	Logger             *slog.Logger
}

// Orchestrator drives one request/response cycle per user turn.
type Orchestrator struct {
	registry      *specialist.Registry
	conversations StateStore
	guardrails    *guardrail.Pipeline
	reasoner      reasoning.Reasoner
	router        *Router
	locks         *turnLocks
	profiles      ProfileLoader
	log           ConversationLogger
	observers     []TurnObserver
	maxRounds     int
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
}

// New creates an orchestrator.
func New(registry *specialist.Registry, conversations StateStore, guardrails *guardrail.Pipeline, reasoner reasoning.Reasoner, opts Options) (*Orchestrator, error) {
	switch {
	case registry == nil:
		return nil, errors.New("orchestrator requires a specialist registry")
	case conversations == nil:
		return nil, errors.New("orchestrator requires a conversation store")
	case guardrails == nil:
		return nil, errors.New("orchestrator requires a guardrail pipeline")
	case reasoner == nil:
		return nil, errors.New("orchestrator requires a reasoner")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockMode == "" {
		opts.LockMode = LockQueue
	}
	if opts.MaxReasoningRounds <= 0 {
		opts.MaxReasoningRounds = DefaultMaxReasoningRounds
	}
	if opts.ConversationLog == nil {
		opts.ConversationLog = noopConversationLogger{}
	}

	return &Orchestrator{
		registry:      registry,
		conversations: conversations,
		guardrails:    guardrails,
		reasoner:      reasoner,
		router:        NewRouter(registry),
		locks:         newTurnLocks(opts.LockMode, opts.LockTimeout),
		profiles:      opts.Profiles,
		log:           opts.ConversationLog,
		observers:     opts.Observers,
		maxRounds:     opts.MaxReasoningRounds,
		logger:        opts.Logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// Registry returns the specialist registry.
func (o *Orchestrator) Registry() *specialist.Registry {
	return o.registry
}

type phase int

const (
	phaseLoading phase = iota
	phaseGuardrails
	phaseDispatching
	phaseProcessingActions
	phaseReconciling
	phasePersisting
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseLoading:
		return "loading"
	case phaseGuardrails:
		return "guardrails"
	case phaseDispatching:
		return "dispatching"
	case phaseProcessingActions:
		return "processing_actions"
	case phaseReconciling:
		return "reconciling"
	case phasePersisting:
		return "persisting"
	default:
		return "done"
	}
}

// turn is the working state of one in-flight turn.
type turn struct {
	phase     phase
	input     string
	state     *domain.ConversationState
	isNew     bool
	appended  bool
	evaluated bool
	started   string
	before    domain.AirlineContext
	rec       *Recorder
	messages  []MessageResponse
	checks    []guardrail.Result
}

// HandleTurn runs one turn. Once the conversation lock is held the turn runs
// to completion even if ctx is cancelled. Fatal errors are logged and
// reported as ErrTurnFailed.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = o.newID()
	}

	release, err := o.locks.acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)

	t := &turn{
		phase: phaseLoading,
		input: req.Message,
		rec:   NewRecorder(o.now),
	}
	o.load(ctx, t, conversationID, req.IdentityToken)

	if strings.TrimSpace(req.Message) == "" {
		if !t.isNew {
			return nil, ErrEmptyMessage
		}
		t.rec.Info(ConversationStarted)
		t.phase = phasePersisting
		o.persist(ctx, t)
		return o.finish(ctx, t), nil
	}

	t.phase = phaseGuardrails
	active := o.registry.Resolve(t.state.ActiveSpecialist)
	outcome, err := o.guardrails.Evaluate(ctx, active.Guardrails, t.input, t.state.Context)
	if err != nil {
		return o.fail(ctx, t, err)
	}
	t.checks = outcome.Results
	t.evaluated = true

	t.state.History = append(t.state.History, domain.Message{Role: domain.RoleUser, Content: t.input})
	t.appended = true

	if outcome.Status == guardrail.Tripped {
		o.refuse(t, active, outcome.Trip)
	} else if err := o.dispatch(ctx, t, active); err != nil {
		return o.fail(ctx, t, err)
	}

	t.phase = phaseReconciling
	if diff := domain.DiffContext(t.before, t.state.Context); !diff.Empty() {
		t.rec.ContextUpdate(t.state.ActiveSpecialist, diff)
	}

	t.phase = phasePersisting
	o.persist(ctx, t)
	return o.finish(ctx, t), nil
}

func (o *Orchestrator) load(ctx context.Context, t *turn, conversationID, token string) {
	state, found := o.conversations.Get(ctx, conversationID)
	if !found {
		state = domain.NewConversationState(conversationID, o.initialContext(ctx, token), o.now())
		t.isNew = true
		o.logger.Info("New conversation", "conversation_id", conversationID,
			"registration_id", state.Context.RegistrationID)
	}

	if _, ok := o.registry.Get(state.ActiveSpecialist); !ok {
		o.logger.Warn("Unknown stored specialist, using fallback", "conversation_id", conversationID,
			"specialist", state.ActiveSpecialist, "fallback", o.registry.Fallback())
		state.ActiveSpecialist = o.registry.Fallback()
	}

	t.state = state
	t.started = state.ActiveSpecialist
	t.before = state.Context.Clone()
}

func (o *Orchestrator) initialContext(ctx context.Context, token string) domain.AirlineContext {
	token = strings.TrimSpace(token)
	if token == "" || o.profiles == nil {
		return domain.AirlineContext{}
	}
	shared, err := o.profiles.Load(ctx, token)
	if err != nil {
		o.logger.Warn("Identity load failed, using default context", "error", err)
		if errors.Is(err, identity.ErrInvalidToken) {
			return domain.AirlineContext{}
		}
		return domain.AirlineContext{RegistrationID: token}
	}
	return shared
}

func (o *Orchestrator) refuse(t *turn, active *specialist.Descriptor, trip guardrail.Result) {
	o.logger.Info("Turn refused by guardrail", "conversation_id", t.state.ConversationID,
		"specialist", active.ID, "guardrail", trip.ID)

	t.state.History = append(t.state.History, domain.Message{
		Role:       domain.RoleAssistant,
		Content:    RefusalMessage,
		Specialist: active.ID,
	})
	t.messages = append(t.messages, MessageResponse{Content: RefusalMessage, Specialist: active.ID})
	t.rec.GuardrailRefusal(trip, RefusalMessage)
}

// dispatch runs reasoning rounds until the capability stops asking for tool
// results or the round budget is spent.
func (o *Orchestrator) dispatch(ctx context.Context, t *turn, active *specialist.Descriptor) error {
	history := t.state.History
	current := active

	for round := 1; ; round++ {
		t.phase = phaseDispatching
		res, err := o.reasoner.Run(ctx, reasoning.Request{
			SpecialistID: current.ID,
			History:      domain.CloneHistory(history),
			Context:      t.state.Context.Clone(),
		})
		if err != nil {
			return fmt.Errorf("reasoning round %d for %s: %w", round, current.ID, err)
		}
		if res == nil {
			return fmt.Errorf("reasoning round %d for %s: empty result", round, current.ID)
		}
		if len(res.History) < len(history) {
			return fmt.Errorf("reasoning round %d for %s: canonical history shrank from %d to %d records",
				round, current.ID, len(history), len(res.History))
		}

		t.phase = phaseProcessingActions
		next, records, err := o.processActions(ctx, t, current, res.Actions)
		if err != nil {
			return err
		}
		history = append(domain.CloneHistory(res.History), records...)
		current = next

		if !res.AwaitingToolResults {
			break
		}
		if round >= o.maxRounds {
			o.logger.Warn("Reasoning round budget exhausted", "conversation_id", t.state.ConversationID,
				"specialist", current.ID, "rounds", round)
			break
		}
	}

	t.state.History = history
	t.state.ActiveSpecialist = current.ID
	return nil
}

// processActions applies one round of actions in order. Tool calls and
// handoffs run against the specialist that emitted the round; an accepted
// handoff takes effect once the round is done. It returns the specialist
// active afterwards and the transcript records the orchestrator produced:
// tool results first, then hook greetings.
func (o *Orchestrator) processActions(ctx context.Context, t *turn, emitter *specialist.Descriptor, actions []reasoning.Action) (*specialist.Descriptor, []domain.Message, error) {
	var results, greetings []domain.Message
	next := emitter

	for _, a := range actions {
		switch a.Kind {
		case reasoning.ActionMessage:
			speaker := a.Specialist
			if speaker == "" {
				speaker = emitter.ID
			}
			t.messages = append(t.messages, MessageResponse{Content: a.Text, Specialist: speaker})
			t.rec.Message(speaker, a.Text)

		case reasoning.ActionToolCall:
			result := o.runTool(ctx, t, emitter, a)
			if a.ToolCallID != "" {
				results = append(results, domain.Message{
					Role:       domain.RoleTool,
					Content:    result,
					Specialist: emitter.ID,
					ToolCallID: a.ToolCallID,
					ToolName:   a.ToolName,
				})
			}

		case reasoning.ActionHandoff:
			tr, accepted, err := o.router.Route(emitter, a.Target, &t.state.Context, t.rec)
			if err != nil {
				return nil, nil, err
			}
			content := fmt.Sprintf("Transfer to %s is not available.", a.Target)
			if accepted {
				o.logger.Info("Handoff", "conversation_id", t.state.ConversationID,
					"source", emitter.ID, "target", tr.Target.ID)
				next = tr.Target
				content = "Transferred to " + next.ID + "."
				if tr.Greeting != "" {
					t.messages = append(t.messages, MessageResponse{Content: tr.Greeting, Specialist: next.ID})
					t.rec.Message(next.ID, tr.Greeting)
					greetings = append(greetings, domain.Message{
						Role:       domain.RoleAssistant,
						Content:    tr.Greeting,
						Specialist: next.ID,
					})
				}
			} else {
				o.logger.Warn("Ignoring handoff to disallowed target", "conversation_id", t.state.ConversationID,
					"source", emitter.ID, "target", a.Target)
			}
			if a.ToolCallID != "" {
				results = append(results, domain.Message{
					Role:       domain.RoleTool,
					Content:    content,
					Specialist: emitter.ID,
					ToolCallID: a.ToolCallID,
					ToolName:   reasoning.HandoffToolPrefix + a.Target,
				})
			}

		default:
			o.logger.Warn("Ignoring unknown action", "conversation_id", t.state.ConversationID, "kind", a.Kind)
		}
	}

	return next, append(results, greetings...), nil
}

// runTool executes one tool call. Tool failures are reported to the
// specialist as the tool result rather than failing the turn.
func (o *Orchestrator) runTool(ctx context.Context, t *turn, current *specialist.Descriptor, a reasoning.Action) string {
	t.rec.ToolCall(current.ID, a.ToolName, a.Arguments)

	tool, ok := current.Tool(a.ToolName)
	if !ok {
		err := fmt.Errorf("tool %q is not available to %s", a.ToolName, current.ID)
		result := fmt.Sprintf("Tool %s is not available.", a.ToolName)
		o.logger.Warn("Unknown tool requested", "conversation_id", t.state.ConversationID,
			"specialist", current.ID, "tool", a.ToolName)
		t.rec.ToolOutput(current.ID, a.ToolName, result, err)
		return result
	}

	args, err := specialist.ParseArgs(a.Arguments)
	var result string
	if err == nil {
		result, err = tool.Run(ctx, &t.state.Context, args)
	}
	if err != nil {
		o.logger.Warn("Tool failed", "conversation_id", t.state.ConversationID,
			"specialist", current.ID, "tool", a.ToolName, "error", err)
		result = fmt.Sprintf("Tool %s failed. Please try again later.", a.ToolName)
		t.rec.ToolOutput(current.ID, a.ToolName, result, err)
		return result
	}

	t.rec.ToolOutput(current.ID, a.ToolName, result, nil)
	if tool.Directive {
		t.messages = append(t.messages, MessageResponse{Content: result, Specialist: current.ID})
	}
	return result
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) {
	t.state.UpdatedAt = o.now()
	if !o.conversations.Save(ctx, t.state) {
		o.logger.Debug("Conversation kept in memory only", "conversation_id", t.state.ConversationID)
	}
}

func (o *Orchestrator) finish(ctx context.Context, t *turn) *TurnResult {
	t.phase = phaseDone

	final := o.registry.Resolve(t.state.ActiveSpecialist)
	checks := []guardrail.Result{}
	if t.evaluated {
		checks = o.guardrails.Report(ctx, final.Guardrails, t.input, t.state.Context, t.checks)
	}

	messages := t.messages
	if messages == nil {
		messages = []MessageResponse{}
	}

	result := &TurnResult{
		ConversationID:   t.state.ConversationID,
		ActiveSpecialist: final.ID,
		Messages:         messages,
		Events:           t.rec.Events(),
		Context:          t.state.Context.Fields(),
		Specialists:      o.registry.Summaries(),
		GuardrailChecks:  checks,
		CustomerInfo:     newCustomerInfo(t.state.Context),
		CompletedAt:      o.now(),
	}

	for _, ev := range logEventsFor(result.ConversationID, result.Events) {
		o.log.Log(ev)
	}
	for _, obs := range o.observers {
		obs.TurnCompleted(result.ConversationID, result)
	}
	return result
}

// fail records a generic error notice, restores the pre-turn specialist and
// best-effort persists the conversation.
func (o *Orchestrator) fail(ctx context.Context, t *turn, err error) (*TurnResult, error) {
	o.logger.Error("Turn failed", "conversation_id", t.state.ConversationID,
		"phase", t.phase.String(), "specialist", t.started, "events", t.rec.Len(), "error", err)

	if !t.appended {
		t.state.History = append(t.state.History, domain.Message{Role: domain.RoleUser, Content: t.input})
	}
	t.state.History = append(t.state.History, domain.Message{
		Role:       domain.RoleAssistant,
		Content:    GenericErrorMessage,
		Specialist: SystemSpecialist,
	})
	t.state.ActiveSpecialist = t.started
	o.persist(ctx, t)

	for _, ev := range logEventsFor(t.state.ConversationID, t.rec.Events()) {
		o.log.Log(ev)
	}
	return nil, fmt.Errorf("%w: %w", ErrTurnFailed, err)
}
