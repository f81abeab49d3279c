// Package main provides aidd-c - a resumable autonomous coding loop driving the claude CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/NomadicDaddy/aidd-c/pkg/agent"
	"github.com/NomadicDaddy/aidd-c/pkg/config"
	"github.com/NomadicDaddy/aidd-c/pkg/git"
	"github.com/NomadicDaddy/aidd-c/pkg/loop"
	"github.com/NomadicDaddy/aidd-c/pkg/notify"
	"github.com/NomadicDaddy/aidd-c/pkg/progress"
	"github.com/NomadicDaddy/aidd-c/pkg/project"
	"github.com/NomadicDaddy/aidd-c/pkg/render"
	"github.com/NomadicDaddy/aidd-c/pkg/session"
	"github.com/NomadicDaddy/aidd-c/pkg/status"
)

// generationsDir holds projects given by a relative path.
const generationsDir = "generations"

// opts holds all command-line options. negative numbers mean "use the config value".
type opts struct {
	ProjectDir    string `short:"p" long:"project-dir" description:"project directory, relative paths are placed under generations/"`
	Spec          string `short:"s" long:"spec" description:"application spec copied into the project (new projects default to a built-in example)"`
	MaxIterations int    `short:"m" long:"max-iterations" default:"-1" description:"sessions to run, 0 for unlimited (default: config)"`
	Model         string `long:"model" description:"model for every phase"`
	InitModel     string `long:"init-model" description:"model for initializer and onboarding sessions"`
	CodeModel     string `long:"code-model" description:"model for coding sessions"`
	IdleTimeout   int    `long:"idle-timeout" default:"-1" description:"seconds without agent output before a session is aborted, 0 disables (default: config)"`
	QuitOnAbort   int    `long:"quit-on-abort" default:"-1" description:"stop after this many consecutive failed sessions, 0 never stops (default: config)"`
	ConfigDir     string `long:"config-dir" env:"AIDD_CONFIG_DIR" description:"global config directory (default: ~/.config/aidd-c)"`
	Verbose       bool   `short:"v" long:"verbose" description:"show detailed progress breakdown"`
	Debug         bool   `short:"d" long:"debug" description:"report undecodable agent output"`
	NoColor       bool   `long:"no-color" description:"disable color output"`
	Version       bool   `long:"version" description:"print version and exit"`
}

var revision = "unknown"

// errAborted is returned when the loop stops on consecutive failures.
var errAborted = errors.New("aborted after consecutive session failures")

func main() {
	fmt.Printf("aidd-c %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if o.Version {
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	projectDir, err := resolveProjectDir(o.ProjectDir)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(projectDir, 0o750); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	// probe before anything is written into the project
	hasProgress, hasContent := project.Probe(projectDir)
	metadataDir, err := project.EnsureMetadataDir(projectDir)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(o.ConfigDir, metadataDir)
	if err != nil {
		return err
	}
	s := newSettings(cfg, o)

	if err = checkDependencies(s.command); err != nil {
		return err
	}

	startPhase := status.SelectPhase(hasProgress, hasContent)
	copied, err := prepareSpec(metadataDir, startPhase, o.Spec)
	if err != nil {
		return err
	}
	if copied {
		fmt.Printf("copied application spec to %s\n", filepath.Join(metadataDir, project.SpecFile))
	}

	repo, gitErr := git.Describe(projectDir)
	if gitErr != nil && !errors.Is(gitErr, git.ErrNotRepo) {
		fmt.Fprintf(os.Stderr, "warning: read git metadata: %v\n", gitErr)
	}

	log, err := progress.NewLogger(progress.Config{
		Dir:        metadataDir,
		ProjectDir: projectDir,
		Branch:     repo.Branch,
		Phase:      startPhase,
		Colors:     cfg.Colors,
		NoColor:    o.NoColor,
	})
	if err != nil {
		return fmt.Errorf("create progress logger: %w", err)
	}
	defer log.Close()

	printMarkdown(startupDoc(projectDir, repo, startPhase, s, log.Path()), o.NoColor)

	dialer := &agent.ClaudeDialer{
		Command:       s.command,
		Args:          agent.ParseArgs(cfg.ClaudeArgs),
		Dir:           projectDir,
		ErrorPatterns: cfg.ClaudeErrorPatterns,
		Debug:         o.Debug,
		DebugHandler:  log.Print,
	}
	runner := &session.Runner{Display: log, IdleTimeout: s.idleTimeout}

	l, err := loop.New(loop.Config{
		Prompts: map[status.Phase]string{
			status.PhaseInitializer: cfg.Prompts.Initializer.Body,
			status.PhaseOnboarding:  cfg.Prompts.Onboarding.Body,
			status.PhaseCoding:      cfg.Prompts.Coding.Body,
		},
		Models: s.models,
		Limits: loop.Limits{MaxIterations: s.maxIterations, FailureThreshold: s.quitOnAbort},
		Delay:  cfg.IterationDelay(),
	}, dialer, runner, log)
	if err != nil {
		return fmt.Errorf("create loop: %w", err)
	}
	l.OnEvaluated(func(loop.State) {
		log.PrintSection(status.NewGenericSection("progress"))
		log.PrintAligned(strings.ReplaceAll(project.Summary(metadataDir, false), "**", ""))
	})

	rep := l.Run(ctx, hasProgress, hasContent)

	passing, total := project.CountPassing(metadataDir)
	printMarkdown(summaryDoc(rep, projectDir, project.Summary(metadataDir, o.Verbose), log.Elapsed()), o.NoColor)

	svc, err := notify.New(cfg.Notify, log)
	if err != nil {
		log.Warn("notifications disabled: %v", err)
	}
	// the run context may be canceled already, the summary should still go out
	svc.Send(context.WithoutCancel(ctx), notifyResult(rep, projectDir, repo.Branch, log.Duration(), passing, total))

	if rep.Reason == loop.ReasonFailureThreshold {
		return errAborted
	}
	return nil
}

// resolveProjectDir places relative paths under generations/ unless they already start there.
func resolveProjectDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("--project-dir is required")
	}
	dir = filepath.Clean(dir)
	if !filepath.IsAbs(dir) {
		first, _, _ := strings.Cut(filepath.ToSlash(dir), "/")
		if first != generationsDir {
			dir = filepath.Join(generationsDir, dir)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	return abs, nil
}

// loadConfig installs defaults into the global dir on first run and loads the config,
// the project's tracking directory acting as the local config dir.
func loadConfig(globalDir, metadataDir string) (*config.Config, error) {
	if globalDir == "" {
		dir, err := config.DefaultGlobalDir()
		if err != nil {
			return nil, err
		}
		globalDir = dir
	}
	if err := config.Install(globalDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: install default config: %v\n", err)
	}
	cfg, err := config.Load(metadataDir, globalDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// settings are the effective run settings, CLI flags applied over config.
type settings struct {
	command       string
	models        map[status.Phase]string
	maxIterations int
	quitOnAbort   int
	idleTimeout   time.Duration
}

func newSettings(cfg *config.Config, o opts) settings {
	s := settings{
		command:       cfg.ClaudeCommand,
		models:        make(map[status.Phase]string, len(status.Phases)),
		maxIterations: cfg.MaxIterations,
		quitOnAbort:   cfg.QuitOnAbort,
		idleTimeout:   cfg.IdleTimeout(),
	}
	if s.command == "" {
		s.command = "claude"
	}
	if o.MaxIterations >= 0 {
		s.maxIterations = o.MaxIterations
	}
	if o.QuitOnAbort >= 0 {
		s.quitOnAbort = o.QuitOnAbort
	}
	if o.IdleTimeout >= 0 {
		s.idleTimeout = time.Duration(o.IdleTimeout) * time.Second
	}

	for _, p := range status.Phases {
		phaseFlag := o.CodeModel
		if p != status.PhaseCoding {
			phaseFlag = o.InitModel
		}
		switch {
		case phaseFlag != "":
			s.models[p] = phaseFlag
		case o.Model != "":
			s.models[p] = o.Model
		default:
			s.models[p] = cfg.ModelFor(p)
		}
	}
	return s
}

// prepareSpec copies the application spec for the starting phase. a new project gets spec
// or the built-in example, an onboarded codebase only an explicitly given spec.
func prepareSpec(metadataDir string, phase status.Phase, spec string) (bool, error) {
	if phase != status.PhaseInitializer && (phase != status.PhaseOnboarding || spec == "") {
		return false, nil
	}
	copied, err := project.CopySpec(metadataDir, spec)
	if err != nil {
		return false, fmt.Errorf("copy spec: %w", err)
	}
	return copied, nil
}

func checkDependencies(deps ...string) error {
	for _, dep := range deps {
		if _, err := exec.LookPath(dep); err != nil {
			return fmt.Errorf("%s not found in PATH", dep)
		}
	}
	return nil
}

// startupDoc describes the run about to start.
func startupDoc(projectDir string, repo git.Info, phase status.Phase, s settings, logPath string) string {
	branch := repo.Branch
	if branch != "" && repo.Changed > 0 {
		branch += fmt.Sprintf(" (%d uncommitted)", repo.Changed)
	}
	return render.Document("aidd-c", render.Table(
		render.Row{Key: "Project", Value: projectDir},
		render.Row{Key: "Branch", Value: branch},
		render.Row{Key: "Starting phase", Value: string(phase)},
		render.Row{Key: "Initializer model", Value: s.models[status.PhaseInitializer]},
		render.Row{Key: "Coding model", Value: s.models[status.PhaseCoding]},
		render.Row{Key: "Max iterations", Value: limitText(s.maxIterations, "unlimited")},
		render.Row{Key: "Quit on abort", Value: limitText(s.quitOnAbort, "never")},
		render.Row{Key: "Idle timeout", Value: durationText(s.idleTimeout)},
		render.Row{Key: "Log", Value: logPath},
	))
}

// summaryDoc describes the finished run with the ledger progress and how to continue.
func summaryDoc(rep loop.Report, projectDir, progressMD, elapsed string) string {
	table := render.Table(
		render.Row{Key: "Stopped", Value: rep.Reason.String()},
		render.Row{Key: "Sessions", Value: humanize.Comma(int64(rep.Sessions))},
		render.Row{Key: "Failed sessions", Value: humanize.Comma(int64(rep.Failures))},
		render.Row{Key: "Next phase", Value: string(rep.Phase)},
		render.Row{Key: "Elapsed", Value: elapsed},
	)
	next := fmt.Sprintf("Run again with `--project-dir %s` to continue where this run stopped.", projectDir)
	return render.Document("Run summary", table, progressMD, next)
}

// notifyResult maps a loop report to a notification result.
func notifyResult(rep loop.Report, projectDir, branch string, elapsed time.Duration, passing, total int) notify.Result {
	r := notify.Result{
		Status:     notify.StatusSuccess,
		Reason:     rep.Reason.String(),
		Project:    projectDir,
		Branch:     branch,
		Phase:      string(rep.Phase),
		Duration:   elapsed.Round(time.Second).String(),
		Iterations: rep.Iteration,
		Sessions:   rep.Sessions,
		Failures:   rep.Failures,
		Passing:    passing,
		Total:      total,
	}
	switch rep.Reason {
	case loop.ReasonFailureThreshold:
		r.Status = notify.StatusFailure
		if rep.Last.Failed() {
			r.Error = rep.Last.Message()
		}
	case loop.ReasonExternalInterrupt:
		r.Status = notify.StatusInterrupted
	}
	return r
}

func printMarkdown(md string, noColor bool) {
	out, err := render.Markdown(md, noColor, 0)
	if err != nil {
		out = md
	}
	fmt.Print(out)
}

func limitText(n int, zero string) string {
	if n <= 0 {
		return zero
	}
	return strconv.Itoa(n)
}

func durationText(d time.Duration) string {
	if d <= 0 {
		return "disabled"
	}
	return d.String()
}
