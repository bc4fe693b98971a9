// Package pipeline turns a pre-goal into a SMART goal and a SMART goal into
// a persisted milestone and task plan.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/llm"
	"github.com/alexanderramin/smartplan/internal/plan"
	"github.com/alexanderramin/smartplan/internal/prompt"
	"github.com/alexanderramin/smartplan/internal/store"
	"github.com/google/uuid"
)

// Collections used in the document store.
const (
	PlansCollection    = "plans"
	FeedbackCollection = "feedback"
)

// PlanSummary is a listing entry for a stored plan.
type PlanSummary struct {
	GUID       string    `json:"guid"`
	Name       string    `json:"name"`
	Deadline   string    `json:"deadline"`
	Milestones int       `json:"milestones"`
	Tasks      int       `json:"tasks"`
	CreatedAt  time.Time `json:"created_at"`
}

// Feedback is the stored form of a feedback submission.
type Feedback struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanService runs the two generation stages and reads stored plans.
type PlanService interface {
	// SmartGoal rewrites the pre-goal as a single SMART goal statement.
	SmartGoal(ctx context.Context, pre domain.PreGoal) (string, error)

	// GeneratePlan decomposes a SMART goal into milestones and tasks,
	// assigns identities and stores the result.
	GeneratePlan(ctx context.Context, smartGoal string) (*domain.GoalPlan, error)

	LoadPlan(ctx context.Context, guid string) (*domain.GoalPlan, error)
	ListPlans(ctx context.Context) ([]PlanSummary, error)

	// SubmitFeedback appends free text to the feedback collection and
	// returns the new document key.
	SubmitFeedback(ctx context.Context, text string) (string, error)
}

// Option configures a PlanService.
type Option func(*planService)

// WithIDGenerator replaces the uuid generator used for plan identities.
func WithIDGenerator(fn func() string) Option {
	return func(s *planService) { s.newID = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *planService) { s.now = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *planService) { s.logger = logger }
}

func WithObserver(observer UseCaseObserver) Option {
	return func(s *planService) { s.observer = observer }
}

// WithPrompts replaces the embedded prompt templates.
func WithPrompts(p *prompt.Store) Option {
	return func(s *planService) { s.prompts = p }
}

type planService struct {
	client   llm.Client
	docs     store.Documents
	prompts  *prompt.Store
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
	observer UseCaseObserver
}

// NewPlanService creates a PlanService. docs may be nil, in which case
// plans are generated but not stored and reads report ErrPlanNotFound.
func NewPlanService(client llm.Client, docs store.Documents, opts ...Option) PlanService {
	s := &planService{
		client:   client,
		docs:     docs,
		prompts:  prompt.Default(),
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		observer: NoopUseCaseObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = NoopUseCaseObserver{}
	}
	return s
}

func (s *planService) observe(ctx context.Context, name string, startedAt time.Time, fields map[string]any, err error) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func (s *planService) SmartGoal(ctx context.Context, pre domain.PreGoal) (goal string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observe(ctx, "smart-goal", startedAt, fields, err) }()

	if errs := domain.ValidatePreGoal(pre, s.now()); len(errs) > 0 {
		return "", errs
	}

	rendered, err := s.prompts.Render(prompt.StageSmartGoal, prompt.PreGoalVars(pre))
	if err != nil {
		s.logger.ErrorContext(ctx, "rendering smart goal prompt", "error", err)
		return "", ErrSmartGoalFailed
	}

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Task:     llm.TaskSmartGoal,
		Messages: llm.Chat(rendered.System, rendered.User),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "smart goal completion failed", "error", err)
		return "", ErrSmartGoalFailed
	}
	goal = strings.TrimSpace(resp.Content)
	if goal == "" {
		s.logger.ErrorContext(ctx, "smart goal completion failed", "error", llm.ErrEmptyResponse)
		return "", ErrSmartGoalFailed
	}
	fields["model"] = resp.Model
	fields["latency_ms"] = resp.LatencyMs
	return goal, nil
}

func (s *planService) GeneratePlan(ctx context.Context, smartGoal string) (result *domain.GoalPlan, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observe(ctx, "generate-plan", startedAt, fields, err) }()

	smartGoal = strings.TrimSpace(smartGoal)
	if smartGoal == "" {
		return nil, ErrEmptyGoal
	}

	rendered, err := s.prompts.Render(prompt.StagePlan, prompt.PlanVars(smartGoal, s.now()))
	if err != nil {
		s.logger.ErrorContext(ctx, "rendering plan prompt", "error", err)
		return nil, ErrInvalidPlan
	}

	resp, err := s.client.Complete(ctx, llm.CompletionRequest{
		Task:     llm.TaskPlan,
		Messages: llm.Chat(rendered.System, rendered.User),
		Schema: &llm.ResponseSchema{
			Name:   plan.SchemaName,
			Schema: plan.Schema(),
			Strict: true,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "plan completion failed", "error", err)
		return nil, ErrInvalidPlan
	}

	goal, err := plan.Decode(resp.Content)
	if err != nil {
		s.logger.ErrorContext(ctx, "plan output rejected", "error", err, "model", resp.Model)
		return nil, ErrInvalidPlan
	}
	goal.SortByOrder()
	s.assignIdentities(goal)
	if err := goal.CheckIdentities(); err != nil {
		s.logger.ErrorContext(ctx, "plan identities inconsistent", "error", err)
		return nil, ErrInvalidPlan
	}

	result = &domain.GoalPlan{Goal: *goal, Markdown: plan.RenderMarkdown(goal)}
	fields["guid"] = goal.GUID
	fields["milestones"] = len(goal.Milestones)
	fields["tasks"] = goal.TaskCount()

	if s.docs != nil {
		if werr := s.docs.Set(ctx, store.Join(PlansCollection, goal.GUID), result); werr != nil {
			s.logger.ErrorContext(ctx, "persisting plan failed", "guid", goal.GUID, "error", werr)
			fields["persisted"] = false
		} else {
			fields["persisted"] = true
		}
	}
	return result, nil
}

// assignIdentities gives the goal, every milestone and every task a fresh
// identifier and links each task to its milestone.
func (s *planService) assignIdentities(goal *domain.Goal) {
	goal.GUID = s.newID()
	for i := range goal.Milestones {
		m := &goal.Milestones[i]
		m.MUID = s.newID()
		m.GUID = s.newID()
		for j := range m.Tasks {
			m.Tasks[j].GUID = s.newID()
			m.Tasks[j].MUID = m.MUID
		}
	}
}

func (s *planService) LoadPlan(ctx context.Context, guid string) (*domain.GoalPlan, error) {
	if s.docs == nil || strings.TrimSpace(guid) == "" {
		return nil, ErrPlanNotFound
	}
	var stored domain.GoalPlan
	if err := s.docs.Get(ctx, store.Join(PlansCollection, guid), &stored); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.ErrorContext(ctx, "loading plan failed", "guid", guid, "error", err)
		}
		return nil, ErrPlanNotFound
	}
	stored.Markdown = plan.RenderMarkdown(&stored.Goal)
	return &stored, nil
}

func (s *planService) ListPlans(ctx context.Context) ([]PlanSummary, error) {
	if s.docs == nil {
		return nil, nil
	}
	docs, err := s.docs.List(ctx, PlansCollection)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	summaries := make([]PlanSummary, 0, len(docs))
	for _, d := range docs {
		var gp domain.GoalPlan
		if err := d.Decode(&gp); err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable plan", "path", d.Path, "error", err)
			continue
		}
		summaries = append(summaries, PlanSummary{
			GUID:       d.Key,
			Name:       gp.Goal.Name,
			Deadline:   gp.Goal.Deadline,
			Milestones: len(gp.Goal.Milestones),
			Tasks:      gp.Goal.TaskCount(),
			CreatedAt:  d.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *planService) SubmitFeedback(ctx context.Context, text string) (key string, err error) {
	startedAt := time.Now().UTC()
	defer func() { s.observe(ctx, "submit-feedback", startedAt, nil, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyFeedback
	}
	if s.docs == nil {
		return "", fmt.Errorf("feedback store is not configured")
	}
	key, err = s.docs.Add(ctx, FeedbackCollection, Feedback{Text: text, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("saving feedback: %w", err)
	}
	return key, nil
}
