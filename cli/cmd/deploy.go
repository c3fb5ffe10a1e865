package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/elly0t/skycli/cli/deploy"
	"github.com/elly0t/skycli/cli/model"
	"github.com/elly0t/skycli/cli/style"
)

var (
	deployName       string
	deployIgnoreFile string
	deployArchive    string
	deployInterval   time.Duration
)

var deployCmd = &cobra.Command{
	Use:   "deploy --name <cloud-code>",
	Short: "Deploy cloud code to the app",
	Long: `Archive the cloud code source, upload it and wait until the cloud code
is running. The cloud code must be listed under cloud_code in skygear.yaml.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.StringVar(&deployName, "name", "", "cloud code name")
	f.StringVar(&deployIgnoreFile, "ignore-file", ".skyignore", "name of the per-directory ignore file")
	f.StringVar(&deployArchive, "archive", "", "where to write the source archive (default: system temp dir)")
	f.DurationVar(&deployInterval, "interval", deploy.DefaultPollInterval, "delay between deploy status checks")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cli, project, err := loadContext()
	if err != nil {
		return err
	}

	if deployName == "" {
		names := project.CloudCodeNames()
		if len(names) == 0 {
			return errors.New("need name of cloud code, use --name")
		}
		return fmt.Errorf("need name of cloud code, use --name (one of: %s)", strings.Join(names, ", "))
	}
	cfg, err := project.LookupCloudCode(deployName)
	if err != nil {
		return err
	}

	p := &deploy.Pipeline{
		Controller:   client,
		Logger:       logger,
		ArchivePath:  deployArchive,
		IgnoreFile:   deployIgnoreFile,
		PollInterval: deployInterval,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var res *deploy.Result
	if interactive() {
		res, err = runDeployTUI(ctx, cancel, p, cli, cfg)
	} else {
		res, err = runDeployPlain(ctx, p, cli, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to deploy cloud code %s: %w", deployName, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("cloud code %s ended in %s", deployName, res.Status)
	}
	return nil
}

func runDeployPlain(ctx context.Context, p *deploy.Pipeline, cli model.CLIContext, cfg model.CloudCodeConfig) (*deploy.Result, error) {
	fmt.Printf("Deploy cloud code %s to app %s\n", style.Bold.Render(deployName), style.Bold.Render(cli.App))

	p.Reporter = func(e deploy.Event) {
		fmt.Println(renderEventLine(e))
	}
	res, err := p.Run(ctx, cli, deployName, cfg)
	if err == nil && res.Succeeded() {
		fmt.Println(style.StepDone.Render(fmt.Sprintf("Cloud code %s is running (%s)", deployName, res.CloudCodeID)))
	}
	return res, err
}

func renderEventLine(e deploy.Event) string {
	name := padRight(string(e.Step), 10)
	var line string
	switch e.State {
	case deploy.StateRunning:
		line = style.StepRunning.Render(name) + " " + style.DimText.Render("started")
	case deploy.StateCompleted:
		line = style.StepDone.Render(name) + " " + style.StepDone.Render("✓ done")
	case deploy.StateFailed:
		line = style.StepFailed.Render(name) + " " + style.StepFailed.Render("✗ failed")
	}
	if e.Detail != "" {
		line += " " + style.DimText.Render(e.Detail)
	}
	return "  " + line
}

func runDeployTUI(ctx context.Context, cancel context.CancelFunc, p *deploy.Pipeline, cli model.CLIContext, cfg model.CloudCodeConfig) (*deploy.Result, error) {
	m := newDeployModel(cli.App, deployName, cancel)
	m.start = startDeploy(ctx, p, cli, deployName, cfg)

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}

	dm := finalModel.(deployModel)
	if dm.cancelled {
		return nil, context.Canceled
	}
	return dm.result, dm.err
}

// --- Messages ---

type stepUpdate struct {
	event deploy.Event
}

type deployStarted struct{ ch chan tea.Msg }

type deployFinished struct {
	result *deploy.Result
	err    error
}

// --- Model ---

type deployModel struct {
	app       string
	name      string
	spinner   spinner.Model
	steps     []stepState
	status    string // "starting" | "deploying" | "completed" | "failed"
	result    *deploy.Result
	err       error
	cancelled bool
	startTime time.Time
	eventCh   chan tea.Msg
	cancel    context.CancelFunc
	start     tea.Cmd
}

type stepState struct {
	step   deploy.Step
	state  deploy.State // empty while waiting
	detail string
}

func newDeployModel(app, name string, cancel context.CancelFunc) deployModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(style.Primary)

	steps := make([]stepState, len(deploy.Steps))
	for i, step := range deploy.Steps {
		steps[i] = stepState{step: step}
	}

	return deployModel{
		app:       app,
		name:      name,
		spinner:   s,
		steps:     steps,
		status:    "starting",
		startTime: time.Now(),
		cancel:    cancel,
	}
}

func (m deployModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

func (m deployModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
			m.status = "failed"
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case deployStarted:
		m.status = "deploying"
		m.eventCh = msg.ch
		return m, waitForEvent(m.eventCh)

	case stepUpdate:
		for i := range m.steps {
			if m.steps[i].step == msg.event.Step {
				m.steps[i].state = msg.event.State
				m.steps[i].detail = msg.event.Detail
				break
			}
		}
		return m, waitForEvent(m.eventCh)

	case deployFinished:
		m.result = msg.result
		m.err = msg.err
		if msg.err == nil && msg.result != nil && msg.result.Succeeded() {
			m.status = "completed"
		} else {
			m.status = "failed"
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m deployModel) View() string {
	var b strings.Builder

	b.WriteString(style.Banner.Render("☁ SKYGEAR DEPLOY"))
	b.WriteString("\n")

	b.WriteString(style.Key.Render("App"))
	b.WriteString(style.Bold.Render(m.app))
	b.WriteString("\n")
	b.WriteString(style.Key.Render("Cloud code"))
	b.WriteString(lipgloss.NewStyle().Foreground(style.Cyan).Render(m.name))
	b.WriteString("\n\n")

	stepIcons := map[deploy.Step]string{
		deploy.StepArchive:  "📦",
		deploy.StepChecksum: "🔏",
		deploy.StepUpload:   "⬆️",
		deploy.StepArtifact: "🗂️",
		deploy.StepDeploy:   "🚀",
		deploy.StepWait:     "⏳",
	}

	for _, step := range m.steps {
		icon := stepIcons[step.step]
		name := padRight(string(step.step), 12)
		detail := ""
		if step.detail != "" {
			detail = " " + style.DimText.Render(step.detail)
		}

		switch step.state {
		case "":
			b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.DimText.Render(name), style.DimText.Render("waiting")))
		case deploy.StateRunning:
			b.WriteString(fmt.Sprintf("  %s %s %s %s\n", icon, style.StepRunning.Render(name), m.spinner.View(), style.StepRunning.Render("running")))
		case deploy.StateCompleted:
			b.WriteString(fmt.Sprintf("  %s %s %s%s\n", icon, style.StepDone.Render(name), style.StepDone.Render("✓ done"), detail))
		case deploy.StateFailed:
			b.WriteString(fmt.Sprintf("  %s %s %s%s\n", icon, style.StepFailed.Render(name), style.StepFailed.Render("✗ failed"), detail))
		}
	}

	b.WriteString("\n")

	elapsed := time.Since(m.startTime).Round(time.Second)

	switch m.status {
	case "starting":
		b.WriteString(m.spinner.View() + style.DimText.Render(" Preparing..."))
	case "deploying":
		b.WriteString(m.spinner.View() + style.DimText.Render(fmt.Sprintf(" Deploying... (%s)", elapsed)))
	case "completed":
		b.WriteString(style.SuccessBox.Render(fmt.Sprintf("✓ Cloud code running in %s", elapsed)))
	case "failed":
		b.WriteString(style.ErrorBox.Render("✗ " + m.failureMessage()))
	}

	b.WriteString("\n")
	return b.String()
}

func (m deployModel) failureMessage() string {
	switch {
	case m.cancelled:
		return "Deploy cancelled"
	case m.err != nil:
		return fmt.Sprintf("Deploy failed: %s", m.err)
	case m.result != nil && m.result.Status != "":
		return fmt.Sprintf("Deploy failed: cloud code is %s", m.result.Status)
	default:
		return "Deploy failed"
	}
}

// --- Commands ---

// startDeploy runs the pipeline in the background and forwards its events
// to the returned channel, ending with a deployFinished.
func startDeploy(ctx context.Context, p *deploy.Pipeline, cli model.CLIContext, name string, cfg model.CloudCodeConfig) tea.Cmd {
	return func() tea.Msg {
		// Large enough for every event of one run, so the pipeline never
		// blocks on a program that already quit.
		ch := make(chan tea.Msg, 4*len(deploy.Steps)+1)
		p.Reporter = func(e deploy.Event) {
			ch <- stepUpdate{event: e}
		}

		go func() {
			defer close(ch)
			res, err := p.Run(ctx, cli, name, cfg)
			ch <- deployFinished{result: res, err: err}
		}()

		return deployStarted{ch: ch}
	}
}

// waitForEvent reads the next event from the channel.
func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return deployFinished{err: errors.New("deploy ended without a result")}
		}
		return msg
	}
}
