package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/smartplan/internal/cli/formatter"
	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/plan"
	"github.com/alexanderramin/smartplan/internal/wizard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

const (
	maxFormWidth = 72
	progressBar  = 24
	// chromeLines is the space taken by the header, progress, footer and
	// notices around the plan viewport.
	chromeLines = 9
)

// preGoalSubmittedMsg carries the completed input form.
type preGoalSubmittedMsg struct{ pre domain.PreGoal }

// jobDoneMsg carries a finished generation stage back to the model.
type jobDoneMsg struct{ res wizard.Result }

// preGoalFields are the form-bound values. They live behind a pointer so
// the huh fields keep writing to the same place as the model is copied.
type preGoalFields struct {
	What    string
	Why     string
	When    string
	Profile map[string]any
}

func (f *preGoalFields) preGoal() domain.PreGoal {
	return domain.PreGoal{What: f.What, Why: f.Why, When: f.When, Profile: f.Profile}
}

// wizardModel is the bubbletea front end over a wizard.Controller. The
// controller owns the state; the model owns widgets and rendering.
type wizardModel struct {
	ctx    context.Context
	app    *App
	ctrl   *wizard.Controller
	keys   wizardKeys
	outDir string
	style  string

	fields  *preGoalFields
	form    *huh.Form
	spinner spinner.Model
	editor  textarea.Model
	plan    viewport.Model
	help    help.Model
	shown   *domain.GoalPlan

	width     int
	height    int
	notice    string
	noticeErr bool
}

func newWizardModel(ctx context.Context, app *App, ctrl *wizard.Controller, opts newOptions) wizardModel {
	if ctx == nil {
		ctx = context.Background()
	}
	pre := opts.preGoal()
	editor := textarea.New()
	editor.Placeholder = "Your SMART goal"
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.SetWidth(maxFormWidth)
	editor.SetHeight(5)

	outDir := opts.outDir
	if outDir == "" {
		outDir = "."
	}

	m := wizardModel{
		ctx:     ctx,
		app:     app,
		ctrl:    ctrl,
		keys:    defaultWizardKeys(),
		outDir:  outDir,
		style:   app.markdownStyle(),
		fields:  &preGoalFields{What: pre.What, Why: pre.Why, When: pre.When, Profile: pre.Profile},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(formatter.StylePurple)),
		editor:  editor,
		plan:    viewport.New(80, 20),
		help:    help.New(),
	}
	m.form = m.newForm()
	return m
}

func (m wizardModel) newForm() *huh.Form {
	now := m.app.now
	width := maxFormWidth
	if m.width > 0 && m.width < width {
		width = m.width
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("what").
				Title("What do you want to achieve?").
				Placeholder("Run a marathon").
				Value(&m.fields.What).
				Validate(domain.ValidateWhat),
			huh.NewInput().
				Key("why").
				Title("Why does it matter to you?").
				Value(&m.fields.Why).
				Validate(domain.ValidateWhy),
			huh.NewInput().
				Key("when").
				Title("By when?").
				Description("YYYY-MM-DD, after today").
				Placeholder(now().AddDate(0, 3, 0).Format("2006-01-02")).
				Value(&m.fields.When).
				Validate(func(s string) error { return domain.ValidateWhen(s, now()) }),
		),
	).WithTheme(smartplanHuhTheme()).WithShowHelp(false).WithWidth(width)
}

func (m wizardModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case preGoalSubmittedMsg:
		job, err := m.ctrl.Submit(msg.pre)
		if err != nil {
			// Field errors are shown from the controller state.
			m.form = m.newForm()
			return m, m.form.Init()
		}
		return m, m.startJob(job)

	case jobDoneMsg:
		return m.finishJob(msg.res)

	case spinner.TickMsg:
		if !m.ctrl.Snapshot().Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	return m.forward(msg)
}

func (m *wizardModel) resize(w, h int) {
	m.width, m.height = w, h
	m.form = m.form.WithWidth(min(w, maxFormWidth))
	m.editor.SetWidth(min(w, maxFormWidth))
	m.help.Width = w
	m.plan.Width = w
	m.plan.Height = max(h-chromeLines, 5)
	if m.shown != nil {
		m.showPlan(m.shown)
	}
}

func (m wizardModel) startJob(job wizard.Job) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	run := func() tea.Msg {
		return jobDoneMsg{res: ctrl.Execute(ctx, job)}
	}
	return tea.Batch(run, m.spinner.Tick)
}

func (m wizardModel) finishJob(res wizard.Result) (tea.Model, tea.Cmd) {
	if err := m.ctrl.Apply(res); err != nil {
		m.app.logger().Warn("dropping stale stage result", "error", err)
		return m, nil
	}
	st := m.ctrl.Snapshot()
	switch st.Step {
	case wizard.StepInitial:
		// Stage one failed; the typed answers are still in fields.
		m.form = m.newForm()
		return m, m.form.Init()
	case wizard.StepComplete:
		m.showPlan(st.Plan)
	}
	return m, nil
}

func (m *wizardModel) showPlan(gp *domain.GoalPlan) {
	m.shown = gp
	if gp == nil {
		m.plan.SetContent("")
		return
	}
	rendered, err := formatter.RenderMarkdown(gp.Markdown, m.plan.Width-2, m.style)
	if err != nil {
		m.app.logger().Warn("rendering plan failed", "error", err)
		rendered = gp.Markdown
	}
	m.plan.SetContent(rendered)
	m.plan.GotoTop()
}

func (m wizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Snapshot()
	if st.Loading {
		// Input is locked while a stage is in flight.
		return m, nil
	}
	m.notice, m.noticeErr = "", false

	switch st.Step {
	case wizard.StepInitial:
		if key.Matches(msg, m.keys.Recall) {
			return m.recall()
		}
		return m.updateForm(msg)

	case wizard.StepReview:
		if st.Editing {
			return m.updateEditor(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Accept):
			job, err := m.ctrl.Accept()
			if err != nil {
				return m.fail(err)
			}
			return m, m.startJob(job)
		case key.Matches(msg, m.keys.Edit):
			if err := m.ctrl.Edit(); err != nil {
				return m.fail(err)
			}
			m.editor.SetValue(st.SmartGoal)
			return m, m.editor.Focus()
		case key.Matches(msg, m.keys.New):
			return m.reset()
		case key.Matches(msg, m.keys.Recall):
			return m.recall()
		case key.Matches(msg, m.keys.Exit):
			return m, tea.Quit
		}

	case wizard.StepComplete:
		switch {
		case key.Matches(msg, m.keys.DownloadMD):
			return m.download(plan.FormatMarkdown)
		case key.Matches(msg, m.keys.DownloadTxt):
			return m.download(plan.FormatText)
		case key.Matches(msg, m.keys.New):
			return m.reset()
		case key.Matches(msg, m.keys.Recall):
			return m.recall()
		case key.Matches(msg, m.keys.Exit):
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.plan, cmd = m.plan.Update(msg)
		return m, cmd
	}
	return m, nil
}

// forward hands non-key messages to the widget of the current step.
func (m wizardModel) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Snapshot()
	switch {
	case st.Loading:
		return m, nil
	case st.Step == wizard.StepInitial:
		return m.updateForm(msg)
	case st.Step == wizard.StepReview && st.Editing:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	case st.Step == wizard.StepComplete:
		var cmd tea.Cmd
		m.plan, cmd = m.plan.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form.State != huh.StateNormal {
		return m, nil
	}
	updated, cmd := m.form.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		pre := m.fields.preGoal()
		return m, func() tea.Msg { return preGoalSubmittedMsg{pre: pre} }
	}
	return m, cmd
}

func (m wizardModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		if err := m.ctrl.SetDraft(m.editor.Value()); err != nil {
			return m.fail(err)
		}
		job, err := m.ctrl.SaveAndAccept()
		if err != nil {
			return m.fail(err)
		}
		m.editor.Blur()
		return m, m.startJob(job)
	case key.Matches(msg, m.keys.Cancel):
		if err := m.ctrl.CancelEdit(); err != nil {
			return m.fail(err)
		}
		m.editor.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if err := m.ctrl.SetDraft(m.editor.Value()); err != nil {
		return m.fail(err)
	}
	return m, cmd
}

func (m wizardModel) reset() (tea.Model, tea.Cmd) {
	if err := m.ctrl.Reset(); err != nil {
		return m.fail(err)
	}
	m.fields = &preGoalFields{}
	m.shown = nil
	m.editor.Reset()
	m.form = m.newForm()
	return m, m.form.Init()
}

func (m wizardModel) recall() (tea.Model, tea.Cmd) {
	if err := m.ctrl.Recall(); err != nil {
		return m.fail(err)
	}
	m.showPlan(m.ctrl.Snapshot().Plan)
	return m, nil
}

// download writes the shown plan into the output directory.
func (m wizardModel) download(format plan.Format) (tea.Model, tea.Cmd) {
	gp := m.ctrl.Snapshot().Plan
	if gp == nil {
		return m, nil
	}
	content, name, err := plan.Export(gp.Markdown, format)
	if err != nil {
		return m.fail(err)
	}
	path := filepath.Join(m.outDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		m.app.logger().Error("writing plan download failed", "path", path, "error", err)
		return m.fail(err)
	}
	m.notice = "Saved " + path
	return m, nil
}

func (m wizardModel) fail(err error) (tea.Model, tea.Cmd) {
	m.notice, m.noticeErr = err.Error(), true
	return m, nil
}

func (m wizardModel) View() string {
	st := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(formatter.Header("SMART goal planner"))
	b.WriteString("\n")
	b.WriteString(formatter.RenderSteps(st.Progress, wizard.ProgressTotal, st.Step.String(), progressBar))
	b.WriteString("\n\n")
	if banner := formatter.Banner(st.Banner); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n\n")
	}

	switch {
	case st.Loading:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(formatter.Dim(loadingText(st.Step)))
		b.WriteString("\n")
	case st.Step == wizard.StepInitial:
		b.WriteString(m.form.View())
		b.WriteString("\n")
		if len(st.FieldErrors) > 0 {
			b.WriteString(formatter.FormatFieldErrors(st.FieldErrors))
		}
	case st.Step == wizard.StepReview && st.Editing:
		b.WriteString(formatter.StyleHeader.Render("Edit your SMART goal"))
		b.WriteString("\n")
		b.WriteString(m.editor.View())
		b.WriteString("\n")
	case st.Step == wizard.StepReview:
		b.WriteString(formatter.FormatSmartGoal(st.SmartGoal))
		b.WriteString("\n")
	case st.Step == wizard.StepComplete:
		b.WriteString(m.plan.View())
		b.WriteString("\n")
		if st.Plan != nil {
			b.WriteString(formatter.FormatPlanFooter(st.Plan))
			b.WriteString("\n")
		}
	}

	if m.notice != "" {
		if m.noticeErr {
			b.WriteString(formatter.StyleRed.Render(m.notice))
		} else {
			b.WriteString(formatter.Success(m.notice))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.bindings(st)))
	return b.String()
}

func (m wizardModel) bindings(st wizard.State) []key.Binding {
	switch {
	case st.Loading:
		return []key.Binding{m.keys.Quit}
	case st.Step == wizard.StepInitial && st.HasLastGoal:
		return []key.Binding{m.keys.Recall, m.keys.Quit}
	case st.Step == wizard.StepInitial:
		return []key.Binding{m.keys.Quit}
	case st.Step == wizard.StepReview && st.Editing:
		return []key.Binding{m.keys.Save, m.keys.Cancel, m.keys.Quit}
	case st.Step == wizard.StepReview && st.HasLastGoal:
		return []key.Binding{m.keys.Accept, m.keys.Edit, m.keys.New, m.keys.Recall, m.keys.Exit}
	case st.Step == wizard.StepReview:
		return []key.Binding{m.keys.Accept, m.keys.Edit, m.keys.New, m.keys.Exit}
	default:
		return []key.Binding{m.keys.DownloadMD, m.keys.DownloadTxt, m.keys.Scroll, m.keys.New, m.keys.Exit}
	}
}

func loadingText(step wizard.Step) string {
	if step == wizard.StepSmart {
		return "Writing your SMART goal..."
	}
	return "Planning milestones and tasks..."
}
