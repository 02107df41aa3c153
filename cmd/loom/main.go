package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spetrey/loom/internal/docs"
	"github.com/spetrey/loom/internal/doctor"
	"github.com/spetrey/loom/internal/facts"
	"github.com/spetrey/loom/internal/invoke"
	"github.com/spetrey/loom/internal/logging"
	"github.com/spetrey/loom/internal/orchestrator"
	"github.com/spetrey/loom/internal/runstate"
	"github.com/spetrey/loom/internal/scaffold"
	"github.com/spetrey/loom/internal/session"
	"github.com/spetrey/loom/internal/settings"
	"github.com/spetrey/loom/internal/topology"
	"github.com/spetrey/loom/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:        "loom",
		Usage:       "Pipeline engine that drives an agent CLI through validated phases",
		Description: "Run 'loom docs' for documentation on topologies, phases, sessions, and runs.",
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			intakeCmd(),
			sessionsCmd(),
			statusCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a topology against a brief",
		ArgsUsage: "<topology> [brief]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "brief-file", Usage: "Read the brief from a file instead of the argument"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the phase plan without executing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Refuse to nest: a capability child running loom would recurse.
			if os.Getenv("CLAUDECODE") != "" {
				return fmt.Errorf("loom cannot run inside an agent session (CLAUDECODE is set); run from a regular terminal")
			}

			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("topology argument is required")
			}

			brief := strings.TrimSpace(strings.Join(cmd.Args().Slice()[1:], " "))
			if f := cmd.String("brief-file"); f != "" {
				if brief != "" {
					return fmt.Errorf("brief argument and --brief-file are mutually exclusive")
				}
				data, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("reading brief: %w", err)
				}
				brief = strings.TrimSpace(string(data))
			}

			root, err := findProjectRoot()
			if err != nil {
				return err
			}
			cfg, err := settings.Load(root)
			if err != nil {
				return err
			}

			lt, err := topology.Load(topology.BaseDir(root), name)
			if err != nil {
				return err
			}

			if cmd.Bool("dry-run") {
				o := &orchestrator.Orchestrator{Topology: lt}
				o.DryRunPrint()
				return nil
			}

			if brief == "" {
				return fmt.Errorf("brief is required (pass it as an argument or via --brief-file)")
			}
			if err := invoke.Preflight(cfg.Capability.Command); err != nil {
				return err
			}

			runID := runstate.NewRunID(time.Now())
			runDir := runstate.Dir(root, runID)

			log, err := logging.New(cfg.Logging.Level, runDir)
			if err != nil {
				return err
			}
			defer logging.Sync(log)

			store, err := facts.Open(cfg.FactsPath(root))
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			o := &orchestrator.Orchestrator{
				Topology:    lt,
				Invoker:     newInvoker(cfg, log, os.Stdout),
				ProjectRoot: root,
				RunID:       runID,
				RunDir:      runDir,
				Log:         log,
				Audit:       store,
			}
			st, err := o.Run(ctx, brief)
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(st.Directives))
			for _, d := range st.Directives {
				lines = append(lines, fmt.Sprintf("%s %s", d.Kind, d.Arg))
			}
			ux.Directives(lines)
			return nil
		},
	}
}

func intakeCmd() *cli.Command {
	return &cli.Command{
		Name:      "intake",
		Usage:     "Send one message to an intake session",
		ArgsUsage: "<identity> <message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: string(session.KindDiscovery), Usage: "Session kind: discovery or setup"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("identity and message arguments are required")
			}
			identity := args[0]
			message := strings.Join(args[1:], " ")
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("identity and message arguments are required")
			}
			kind := session.Kind(cmd.String("kind"))
			if kind != session.KindDiscovery && kind != session.KindSetup {
				return fmt.Errorf("unknown session kind %q (must be discovery or setup)", kind)
			}

			root, err := findProjectRoot()
			if err != nil {
				return err
			}
			cfg, err := settings.Load(root)
			if err != nil {
				return err
			}
			if err := invoke.Preflight(cfg.Capability.Command); err != nil {
				return err
			}

			log, err := logging.New(cfg.Logging.Level, "")
			if err != nil {
				return err
			}
			defer logging.Sync(log)

			store, err := facts.Open(cfg.FactsPath(root))
			if err != nil {
				return err
			}
			defer store.Close()

			roleText := session.DefaultRole
			if data, err := os.ReadFile(filepath.Join(root, ".loom", "intake.md")); err == nil {
				roleText = string(data)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := &session.Manager{
				Facts:       store,
				Invoker:     newInvoker(cfg, log, nil),
				Kind:        kind,
				Dir:         filepath.Join(root, ".loom", "sessions"),
				Role:        "intake",
				RoleText:    roleText,
				WorkDir:     root,
				CancelWords: cfg.Session.CancelWords,
				Log:         log,
				Audit:       store,
			}
			out, err := m.Handle(ctx, identity, message)
			if err != nil {
				return err
			}
			printOutcome(out)
			return nil
		},
	}
}

func sessionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List active intake sessions",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}
			cfg, err := settings.Load(root)
			if err != nil {
				return err
			}
			store, err := facts.Open(cfg.FactsPath(root))
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := session.Active(ctx, store, time.Now())
			if err != nil {
				return err
			}
			rows := make([]ux.SessionRow, len(infos))
			for i, in := range infos {
				rows[i] = ux.SessionRow{
					Identity: in.Identity,
					Kind:     string(in.Kind),
					Round:    in.Round,
					Age:      formatAge(time.Since(in.CreatedAt)),
				}
			}
			ux.RenderSessions(os.Stdout, rows)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show run history, or one run's phase states",
		ArgsUsage: "[run-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}

			runID := cmd.Args().First()
			if runID == "" {
				ids, err := runstate.ListRuns(root)
				if err != nil {
					return err
				}
				var runs []*runstate.Run
				for _, id := range ids {
					r, err := runstate.LoadRun(runstate.Dir(root, id))
					if err != nil {
						continue
					}
					runs = append(runs, r)
				}
				ux.RenderRuns(os.Stdout, runs)
				return nil
			}

			runDir := runstate.Dir(root, runID)
			run, err := runstate.LoadRun(runDir)
			if err != nil {
				return fmt.Errorf("no run record for %q", runID)
			}
			timing, _ := runstate.LoadTiming(runDir)

			top := &topology.Topology{Name: run.Topology}
			if lt, err := topology.Load(topology.BaseDir(root), run.Topology); err == nil {
				top = lt.Topology
			} else {
				fmt.Printf("%s(topology %q is no longer present; phase plan unavailable)%s\n", ux.Dim, run.Topology, ux.Reset)
			}

			failedPhase := ""
			if cs, err := runstate.LoadChainState(runDir); err == nil {
				failedPhase = cs.FailedPhase
			}
			ux.RenderRunStatus(os.Stdout, top, run, timing, failedPhase)
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose a failed run using the capability",
		ArgsUsage: "[run-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}
			cfg, err := settings.Load(root)
			if err != nil {
				return err
			}
			if err := invoke.Preflight(cfg.Capability.Command); err != nil {
				return err
			}

			runID := cmd.Args().First()
			if runID == "" {
				runID, err = latestFailedRun(root)
				if err != nil {
					return err
				}
			}

			log, err := logging.New(cfg.Logging.Level, "")
			if err != nil {
				return err
			}
			defer logging.Sync(log)

			store, err := facts.Open(cfg.FactsPath(root))
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return doctor.Run(ctx, newInvoker(cfg, log, nil), store, root, runID)
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold the .loom/ directory",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "guided", Usage: "Generate a topology tailored to this project using the capability"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			if !cmd.Bool("guided") {
				return scaffold.Init(dir)
			}

			// Settings fall back to defaults here; .loom/ does not exist yet.
			cfg, err := settings.Load(dir)
			if err != nil {
				return err
			}
			if err := invoke.Preflight(cfg.Capability.Command); err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Level, "")
			if err != nil {
				return err
			}
			defer logging.Sync(log)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return scaffold.InitGuided(ctx, newInvoker(cfg, log, nil), dir)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-12s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'loom docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}

// newInvoker builds the capability chain used by every command: the claude
// CLI wrapped in transient retry. stream receives live output for
// interactive runs and is nil where output is parsed instead of watched.
func newInvoker(cfg *settings.Settings, log *zap.Logger, stream *os.File) invoke.Invoker {
	c := &invoke.CLI{
		Command: cfg.Capability.Command,
		Models: map[invoke.Tier]string{
			invoke.TierFast:    cfg.Capability.FastModel,
			invoke.TierComplex: cfg.Capability.ComplexModel,
		},
		Timeout: time.Duration(cfg.Capability.TimeoutMinutes) * time.Minute,
	}
	if stream != nil {
		c.Stream = stream
	}
	return &invoke.Retrier{Inner: c, Log: log}
}

func printOutcome(out *session.Outcome) {
	switch out.Kind {
	case session.OutcomeQuestions:
		fmt.Printf("\n%sQuestions (round %d of %d):%s\n\n%s\n", ux.Bold, out.Round, session.MaxRounds, ux.Reset, out.Text)
		fmt.Printf("\n%sAnswer with another 'loom intake' message, or say one of the cancel words to stop.%s\n", ux.Dim, ux.Reset)
	case session.OutcomeBrief:
		suffix := ""
		if out.Forced {
			suffix = " (round limit reached)"
		}
		fmt.Printf("\n%s%s✓ Brief finalized%s%s\n\n%s\n", ux.Bold, ux.Green, ux.Reset, suffix, out.Text)
		fmt.Printf("\n%sStart the build with: loom run standard \"<brief>\"%s\n", ux.Dim, ux.Reset)
	default:
		fmt.Printf("\n%s\n", out.Text)
	}
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

// latestFailedRun picks the newest failed run, the one an operator almost
// always means when they type 'loom doctor' with no argument.
func latestFailedRun(projectRoot string) (string, error) {
	ids, err := runstate.ListRuns(projectRoot)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		r, err := runstate.LoadRun(runstate.Dir(projectRoot, id))
		if err != nil {
			continue
		}
		if r.Status == runstate.StatusFailed {
			return id, nil
		}
	}
	return "", fmt.Errorf("no failed runs to diagnose")
}

// findProjectRoot walks up from cwd looking for a .loom directory.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".loom")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .loom directory found (searched from cwd to filesystem root); run 'loom init' first")
		}
		dir = parent
	}
}
