package cli

import (
	"context"
	"fmt"

	"github.com/neelabalan/dotsync/internal/version"
	"github.com/neelabalan/dotsync/pkg/config"
	"github.com/neelabalan/dotsync/pkg/engine"
	"github.com/neelabalan/dotsync/pkg/errors"
	"github.com/neelabalan/dotsync/pkg/logging"
	"github.com/neelabalan/dotsync/pkg/paths"
	"github.com/neelabalan/dotsync/pkg/profile"
	"github.com/neelabalan/dotsync/pkg/repo"
	"github.com/neelabalan/dotsync/pkg/state"
	"github.com/neelabalan/dotsync/pkg/types"
	"github.com/neelabalan/dotsync/pkg/ui/display"
	"github.com/spf13/cobra"
)

func (a *app) newInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
		noFetch    bool
	)

	cmd := &cobra.Command{
		Use:     "init",
		Short:   MsgInitShort,
		Long:    MsgInitLong,
		Example: MsgInitExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.GetLogger("cli.init")
			done := logging.LogOperationStart(logger, "init")
			defer done()

			eng, _, err := a.engine()
			if err != nil {
				return err
			}
			if !force && state.NewStore(a.fs()).Exists(eng.StatePath()) {
				return errors.Newf(errors.ErrStateExists, "state file %s already exists, use --force to replace it", eng.StatePath()).
					WithDetail("path", eng.StatePath())
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var fetch engine.FetchFunc
			if !noFetch {
				fetch = func(ctx context.Context, cfg *types.Config, repoPath string) (types.SourceType, error) {
					return a.fetcher().Fetch(ctx, cfg.URL, cfg.Branch, repoPath)
				}
			}

			st, err := eng.Init(cmd.Context(), cfg, repo.DetectSourceType(cfg.URL), force, fetch)
			if err != nil {
				return err
			}

			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			report := display.FromInit(st, eng.StatePath())
			report.Message = fmt.Sprintf(MsgInitDone, len(st.Profiles))
			return r.RenderResult(report)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", MsgFlagConfig)
	cmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)
	cmd.Flags().BoolVar(&noFetch, "no-fetch", false, MsgFlagNoFetch)
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagFilename("config", "json", "yaml", "yml", "toml")
	return cmd
}

func (a *app) newSetupCmd() *cobra.Command {
	var (
		profileName string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:     "setup",
		Short:   MsgSetupShort,
		Long:    MsgSetupLong,
		Example: MsgSetupExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, home, err := a.engine()
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := eng.Plan(profileName)
				if err != nil {
					return err
				}
				return r.RenderResult(display.FromPlan(plan))
			}

			res, err := eng.Setup(cmd.Context(), profileName)
			if err != nil {
				return err
			}
			report := display.FromSetup(res, paths.ResolveWith(res.State.Path, home))
			report.Message = fmt.Sprintf(MsgSetupDone, profileName)
			return r.RenderResult(report)
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", MsgFlagProfile)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, MsgFlagDryRun)
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.RegisterFlagCompletionFunc("profile", a.profileCompletion)
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   MsgStatusShort,
		Long:    MsgStatusLong,
		Example: MsgStatusExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := a.engine()
			if err != nil {
				return err
			}
			status, err := eng.Status()
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			return r.RenderResult(display.FromStatus(status))
		},
	}
}

func (a *app) newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "backup",
		Short:   MsgBackupShort,
		Long:    MsgBackupLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := a.engine()
			if err != nil {
				return err
			}
			active, err := eng.Active()
			if err != nil {
				return err
			}
			if active == "" {
				return errors.New(errors.ErrInvalidInput, MsgNoProfile)
			}
			archive, err := eng.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			if archive == "" {
				return r.RenderMessage(fmt.Sprintf(MsgNothingBackup, active))
			}
			return r.RenderResult(display.FromSnapshot(active, archive))
		},
	}
}

func (a *app) newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "destroy",
		Short:   MsgDestroyShort,
		Long:    MsgDestroyLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := a.engine()
			if err != nil {
				return err
			}
			active, err := eng.Active()
			if err != nil {
				return err
			}
			removed, err := eng.Destroy(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			report := display.FromDestroy(active, eng.StatePath(), removed)
			report.Message = fmt.Sprintf(MsgDestroyDone, len(removed))
			return r.RenderResult(report)
		},
	}
}

func (a *app) newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh",
		Short:   MsgRefreshShort,
		Long:    MsgRefreshLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, home, err := a.engine()
			if err != nil {
				return err
			}
			active, err := eng.Active()
			if err != nil {
				return err
			}
			if active == "" {
				return errors.New(errors.ErrInvalidInput, MsgNoProfile)
			}

			res, err := eng.Refresh(cmd.Context(), func(ctx context.Context, st *types.State, repoPath string) error {
				return a.fetcher().Update(ctx, st.SourceType, st.URL, repoPath)
			})
			if err != nil {
				return err
			}
			r, err := a.renderer(cmd)
			if err != nil {
				return err
			}
			report := display.FromSetup(res, paths.ResolveWith(res.State.Path, home))
			report.Command = "refresh"
			report.Message = MsgRefreshDone + " " + fmt.Sprintf(MsgSetupDone, active)
			return r.RenderResult(report)
		},
	}
}

// profileCompletion offers the profile names of the current state file.
func (a *app) profileCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	eng, _, err := a.engine()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	status, err := eng.Status()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return profile.Names(status.State.Profiles), cobra.ShellCompDirectiveNoFileComp
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dotsync version %s\n", version.Version)
			_, _ = fmt.Fprintf(out, "  commit: %s\n", version.Commit)
			_, _ = fmt.Fprintf(out, "  built:  %s\n", version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
