// Package cli builds the dotsync command tree.
package cli

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/neelabalan/dotsync/internal/version"
	"github.com/neelabalan/dotsync/pkg/cobrax/topics"
	"github.com/neelabalan/dotsync/pkg/engine"
	"github.com/neelabalan/dotsync/pkg/exitcodes"
	"github.com/neelabalan/dotsync/pkg/filesystem"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
	"github.com/neelabalan/dotsync/pkg/repo"
	"github.com/neelabalan/dotsync/pkg/types"
	"github.com/neelabalan/dotsync/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed topics
var topicFiles embed.FS

// Options replaces the process environment the commands work against.
// Zero fields select the real filesystem, home directory and fetcher.
type Options struct {
	FS      types.FS
	HomeDir string
	Fetcher *repo.Fetcher
	Now     func() time.Time
}

// app carries the global flag values and the resolved environment.
type app struct {
	opts      Options
	verbosity int
	stateFile string
	format    string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot(Options{})
	return cmd
}

func newRoot(opts Options) (*cobra.Command, *app) {
	initTemplateFormatting()

	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:     "dotsync",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(a.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&a.stateFile, "state-file", "", MsgFlagStateFile)
	rootCmd.PersistentFlags().StringVar(&a.format, "format", "auto", MsgFlagFormat)
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "term", "text", "json", "yaml", "toml"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(a.newInitCmd())
	rootCmd.AddCommand(a.newSetupCmd())
	rootCmd.AddCommand(a.newStatusCmd())
	rootCmd.AddCommand(a.newBackupCmd())
	rootCmd.AddCommand(a.newDestroyCmd())
	rootCmd.AddCommand(a.newRefreshCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	tm, err := topics.New(topicFiles, "topics", topics.Options{Renderer: topics.NewGlamourRenderer()})
	if err == nil {
		topicsCmd := tm.Command()
		topicsCmd.GroupID = "misc"
		rootCmd.AddCommand(topicsCmd)
		topics.Initialize(rootCmd, tm)
	}
	rootCmd.SetHelpCommandGroupID("misc")

	return rootCmd, a
}

// Execute runs the command tree with args and returns the process exit code.
// Errors are rendered to stderr in the selected output format.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd, a := newRoot(Options{})
	return a.execute(ctx, rootCmd, args, stdout, stderr)
}

func (a *app) execute(ctx context.Context, rootCmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}

	code := exitcodes.FromError(err)
	log.Debug().Err(err).Int("exitCode", code).Str("meaning", exitcodes.Description(code)).Msg("Command failed")

	format, parseErr := ui.ParseFormat(a.format)
	if parseErr != nil {
		format = ui.FormatText
	}
	renderer, rendErr := ui.NewRenderer(format, stderr)
	if rendErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return code
	}
	_ = renderer.RenderError(err)
	return code
}

func (a *app) homeDir() (string, error) {
	if a.opts.HomeDir != "" {
		return a.opts.HomeDir, nil
	}
	return paths.GetHomeDirectory()
}

func (a *app) fs() types.FS {
	if a.opts.FS != nil {
		return a.opts.FS
	}
	return filesystem.NewOS()
}

func (a *app) fetcher() *repo.Fetcher {
	if a.opts.Fetcher != nil {
		return a.opts.Fetcher
	}
	return repo.NewFetcher(a.fs(), nil, nil)
}

// statePath resolves --state-file, then DOTSYNC_STATE_FILE, then the default.
func (a *app) statePath(home string) (string, error) {
	p := a.stateFile
	if p == "" {
		p = os.Getenv(paths.EnvStateFile)
	}
	if p == "" {
		p = paths.DefaultStateFile
	}
	abs, err := filepath.Abs(paths.ExpandWith(p, home))
	if err != nil {
		return "", fmt.Errorf("invalid state file path %s: %w", p, err)
	}
	return abs, nil
}

// engine builds the engine for the resolved environment.
func (a *app) engine() (*engine.Engine, string, error) {
	home, err := a.homeDir()
	if err != nil {
		return nil, "", err
	}
	statePath, err := a.statePath(home)
	if err != nil {
		return nil, "", err
	}
	eng, err := engine.New(engine.Options{
		FS:        a.fs(),
		StatePath: statePath,
		HomeDir:   home,
		Now:       a.opts.Now,
		OnTransition: func(from, to engine.Phase) {
			logger := logging.GetLogger("cli")
			logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Phase")
		},
	})
	if err != nil {
		return nil, "", err
	}
	return eng, home, nil
}

func (a *app) renderer(cmd *cobra.Command) (ui.Renderer, error) {
	format, err := ui.ParseFormat(a.format)
	if err != nil {
		return nil, err
	}
	return ui.NewRenderer(format, cmd.OutOrStdout())
}
