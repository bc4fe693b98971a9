// Package wizard drives the goal creation flow: input, SMART goal review
// and plan generation, with recall of the last generated plan.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/localstore"
)

// Step is the wizard position. It is the single source of truth for which
// screen is shown.
type Step int

const (
	StepInitial Step = iota
	StepSmart
	StepReview
	StepMilestones
	StepComplete
)

// ProgressTotal is the number of stages shown in the progress indicator.
const ProgressTotal = 4

func (s Step) String() string {
	switch s {
	case StepInitial:
		return "initial"
	case StepSmart:
		return "smart"
	case StepReview:
		return "review"
	case StepMilestones:
		return "milestones"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	ErrBusy           = errors.New("a generation step is already running")
	ErrValidation     = errors.New("please correct the highlighted fields")
	ErrWrongStep      = errors.New("action is not available at this step")
	ErrEmptySmartGoal = errors.New("SMART goal cannot be empty")
	ErrNoLastGoal     = errors.New("there is no saved goal to recall")
)

// Pipeline runs the two generation stages.
type Pipeline interface {
	SmartGoal(ctx context.Context, pre domain.PreGoal) (string, error)
	GeneratePlan(ctx context.Context, smartGoal string) (*domain.GoalPlan, error)
}

// LastGoalCache mirrors the most recent plan on the local device.
type LastGoalCache interface {
	Save(plan domain.GoalPlan) error
	Exists() bool
	Load() (*localstore.LastGoalEntry, error)
}

// JobKind identifies which stage a Job runs.
type JobKind int

const (
	JobSmartGoal JobKind = iota + 1
	JobPlan
)

// Job is a pending stage call handed to the caller to execute.
type Job struct {
	Kind      JobKind
	PreGoal   domain.PreGoal
	SmartGoal string
}

// Result is the outcome of a Job, fed back through Apply.
type Result struct {
	Kind      JobKind
	SmartGoal string
	Plan      *domain.GoalPlan
	Err       error
}

// State is a copy of the wizard's visible state.
type State struct {
	Step        Step
	Loading     bool
	Progress    int
	Input       domain.PreGoal
	FieldErrors domain.FieldErrors
	Banner      string
	SmartGoal   string
	Draft       string
	Editing     bool
	Plan        *domain.GoalPlan
	HasLastGoal bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the time source used for date validation.
func WithClock(fn func() time.Time) Option {
	return func(c *Controller) { c.now = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Controller is the wizard state machine. It is safe for concurrent use;
// jobs run outside the lock and report back through Apply.
type Controller struct {
	mu       sync.Mutex
	pipeline Pipeline
	cache    LastGoalCache
	now      func() time.Time
	logger   *slog.Logger

	step        Step
	loading     bool
	pending     JobKind
	input       domain.PreGoal
	fieldErrors domain.FieldErrors
	banner      string
	smartGoal   string
	draft       string
	editing     bool
	plan        *domain.GoalPlan
	hasLastGoal bool
}

// New creates a Controller at StepInitial. cache may be nil. Whether a last
// goal exists is checked once here, without decoding it.
func New(p Pipeline, cache LastGoalCache, opts ...Option) *Controller {
	c := &Controller{
		pipeline: p,
		cache:    cache,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cache != nil {
		c.hasLastGoal = cache.Exists()
	}
	return c
}

// Submit validates the pre-goal and, when valid, starts the SMART goal stage.
func (c *Controller) Submit(pre domain.PreGoal) (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		return Job{}, ErrBusy
	}
	if c.step != StepInitial {
		return Job{}, ErrWrongStep
	}
	c.input = pre
	if errs := domain.ValidatePreGoal(pre, c.now()); len(errs) > 0 {
		c.fieldErrors = errs
		return Job{}, ErrValidation
	}
	c.fieldErrors = nil
	c.banner = ""
	c.step = StepSmart
	c.start(JobSmartGoal)
	return Job{Kind: JobSmartGoal, PreGoal: pre}, nil
}

func (c *Controller) start(kind JobKind) {
	c.loading = true
	c.pending = kind
}

// Apply feeds a finished job back into the state machine.
func (c *Controller) Apply(res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loading || res.Kind != c.pending {
		return ErrWrongStep
	}
	c.loading = false
	c.pending = 0

	switch res.Kind {
	case JobSmartGoal:
		if res.Err != nil {
			c.step = StepInitial
			c.banner = res.Err.Error()
			return nil
		}
		c.step = StepReview
		c.smartGoal = res.SmartGoal
		c.draft = res.SmartGoal
		c.editing = false
	case JobPlan:
		if res.Err != nil || res.Plan == nil {
			c.step = StepReview
			c.banner = errorText(res.Err)
			return nil
		}
		c.step = StepComplete
		c.plan = res.Plan
		c.mirror(*res.Plan)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return "no plan was returned"
	}
	return err.Error()
}

// mirror writes the plan to the local cache. Failures are logged only.
func (c *Controller) mirror(plan domain.GoalPlan) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Save(plan); err != nil {
		c.logger.Warn("caching last goal failed", "error", err)
		return
	}
	c.hasLastGoal = true
}

func (c *Controller) requireReview() error {
	if c.loading {
		return ErrBusy
	}
	if c.step != StepReview {
		return ErrWrongStep
	}
	return nil
}

// Edit opens the SMART goal for editing with a draft equal to the accepted text.
func (c *Controller) Edit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReview(); err != nil {
		return err
	}
	c.editing = true
	c.draft = c.smartGoal
	return nil
}

// SetDraft replaces the draft text while editing.
func (c *Controller) SetDraft(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReview(); err != nil {
		return err
	}
	if !c.editing {
		return ErrWrongStep
	}
	c.draft = text
	return nil
}

// CancelEdit discards the draft.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReview(); err != nil {
		return err
	}
	c.editing = false
	c.draft = c.smartGoal
	return nil
}

// Accept starts plan generation from the accepted SMART goal.
func (c *Controller) Accept() (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReview(); err != nil {
		return Job{}, err
	}
	if c.editing {
		return Job{}, ErrWrongStep
	}
	return c.acceptLocked()
}

// SaveAndAccept promotes the draft to the accepted SMART goal and starts
// plan generation.
func (c *Controller) SaveAndAccept() (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireReview(); err != nil {
		return Job{}, err
	}
	if !c.editing {
		return Job{}, ErrWrongStep
	}
	if strings.TrimSpace(c.draft) == "" {
		return Job{}, ErrEmptySmartGoal
	}
	c.smartGoal = c.draft
	c.editing = false
	return c.acceptLocked()
}

func (c *Controller) acceptLocked() (Job, error) {
	if strings.TrimSpace(c.smartGoal) == "" {
		return Job{}, ErrEmptySmartGoal
	}
	c.banner = ""
	c.step = StepMilestones
	c.start(JobPlan)
	return Job{Kind: JobPlan, SmartGoal: c.smartGoal}, nil
}

// Reset returns to the empty input form.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrBusy
	}
	c.step = StepInitial
	c.input = domain.PreGoal{}
	c.fieldErrors = nil
	c.banner = ""
	c.smartGoal = ""
	c.draft = ""
	c.editing = false
	c.plan = nil
	return nil
}

// Recall loads the cached plan and jumps straight to StepComplete.
func (c *Controller) Recall() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrBusy
	}
	if c.cache == nil {
		return ErrNoLastGoal
	}
	entry, err := c.cache.Load()
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			c.logger.Warn("reading last goal failed", "error", err)
		}
		return ErrNoLastGoal
	}
	plan := entry.GoalPlan
	c.step = StepComplete
	c.plan = &plan
	c.banner = ""
	c.editing = false
	c.hasLastGoal = true
	return nil
}

// HasLastGoal reports whether a cached plan is available to recall.
func (c *Controller) HasLastGoal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLastGoal
}

// Snapshot returns a copy of the visible state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fieldErrors domain.FieldErrors
	if len(c.fieldErrors) > 0 {
		fieldErrors = make(domain.FieldErrors, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			fieldErrors[k] = v
		}
	}
	return State{
		Step:        c.step,
		Loading:     c.loading,
		Progress:    int(c.step),
		Input:       c.input,
		FieldErrors: fieldErrors,
		Banner:      c.banner,
		SmartGoal:   c.smartGoal,
		Draft:       c.draft,
		Editing:     c.editing,
		Plan:        c.plan,
		HasLastGoal: c.hasLastGoal,
	}
}

// Execute performs job against the pipeline without touching wizard state.
func (c *Controller) Execute(ctx context.Context, job Job) Result {
	res := Result{Kind: job.Kind}
	switch job.Kind {
	case JobSmartGoal:
		res.SmartGoal, res.Err = c.pipeline.SmartGoal(ctx, job.PreGoal)
	case JobPlan:
		res.Plan, res.Err = c.pipeline.GeneratePlan(ctx, job.SmartGoal)
	default:
		res.Err = fmt.Errorf("unknown job kind %d", job.Kind)
	}
	return res
}

// Run executes job synchronously and applies its result. The returned error
// is the stage's failure, if any.
func (c *Controller) Run(ctx context.Context, job Job) error {
	res := c.Execute(ctx, job)
	if err := c.Apply(res); err != nil {
		return err
	}
	return res.Err
}
