package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"modsync/internal/app"
	"modsync/internal/client"
	"modsync/internal/config"
	localfs "modsync/internal/fs"
	"modsync/internal/modsync"
)

var (
	serverURL string
	apiKey    string
	modpackID string
	workers   int
	verbose   bool
)

// loadProject reads dir's project config, if any, and applies flag overrides.
func loadProject(dir string) (*config.ProjectConfig, error) {
	project, err := config.LoadProject(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		project = &config.ProjectConfig{}
	}
	if serverURL != "" {
		project.ServerURL = serverURL
	}
	if apiKey != "" {
		project.APIKey = apiKey
	}
	if modpackID != "" {
		project.ModpackID = modpackID
	}
	if project.APIKey == "" {
		project.APIKey = os.Getenv(config.EnvMasterKey)
	}
	if project.ServerURL == "" {
		return nil, fmt.Errorf("no server: pass --server or run `modsync link` in %s", dir)
	}
	return project, nil
}

func requireModpack(project *config.ProjectConfig) error {
	if project.ModpackID == "" {
		return errors.New("no modpack: pass --modpack or run `modsync link`")
	}
	return nil
}

func newClient(project *config.ProjectConfig) *client.Client {
	var logger modsync.Logger
	if verbose {
		logger = app.NewLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	c := client.New(nil, project.ServerURL, project.APIKey, logger)
	c.SetWorkers(workers)
	return c
}

func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// modpack command
var modpackCmd = &cobra.Command{
	Use:   "modpack",
	Short: "Manage modpacks on a server",
}

var (
	modpackGame      string
	modpackGameVer   string
	modpackLoader    string
	modpackLoaderVer string
)

func modpackInput(name string) modsync.ModpackInput {
	return modsync.ModpackInput{
		Name:             name,
		Game:             modpackGame,
		GameVersion:      modpackGameVer,
		Modloader:        modpackLoader,
		ModloaderVersion: modpackLoaderVer,
	}
}

var modpackCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a modpack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(".")
		if err != nil {
			return err
		}
		mp, err := newClient(project).CreateModpack(cmd.Context(), modpackInput(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created modpack %s (%s)\n", mp.Name, mp.ID)
		return nil
	},
}

var modpackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List modpacks",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(".")
		if err != nil {
			return err
		}
		modpacks, err := newClient(project).ListModpacks(cmd.Context())
		if err != nil {
			return err
		}
		app.RenderModpacks(cmd.OutOrStdout(), modpacks)
		return nil
	},
}

var modpackShowCmd = &cobra.Command{
	Use:   "show [ID]",
	Short: "Show a modpack and its live files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			modpackID = args[0]
		}
		project, err := loadProject(".")
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}
		view, err := newClient(project).GetModpack(cmd.Context(), project.ModpackID)
		if err != nil {
			return err
		}
		app.RenderModpack(cmd.OutOrStdout(), view)
		return nil
	},
}

var modpackUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a modpack's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(".")
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		mp, err := newClient(project).UpdateModpack(cmd.Context(), args[0], modpackInput(name))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated modpack %s (%s)\n", mp.Name, mp.ID)
		return nil
	},
}

var modpackDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a modpack and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := loadProject(".")
		if err != nil {
			return err
		}
		if err := newClient(project).DeleteModpack(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted modpack %s\n", args[0])
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link MODPACK_ID [DIR]",
	Short: "Bind a directory to a modpack",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args[1:])
		modpackID = args[0]
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if _, err := newClient(project).GetModpack(cmd.Context(), project.ModpackID); err != nil {
			return err
		}
		if err := config.SaveProject(dir, project); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to modpack %s\n", dir, project.ModpackID)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [DIR]",
	Short: "Print the manifest of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		var include, exclude []string
		if project, err := config.LoadProject(dir); err == nil {
			include, exclude = project.Include, project.Exclude
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		m, err := localfs.ScanDir(cmd.Context(), dir, include, exclude)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return app.RenderManifest(cmd.OutOrStdout(), m, format)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [DIR]",
	Short: "Publish a directory as the modpack's next version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}

		refresh, _ := cmd.Flags().GetBool("refresh")
		allowEmpty, _ := cmd.Flags().GetBool("allow-empty")
		report, err := newClient(project).PublishDir(cmd.Context(), dir, project, client.PublishOptions{
			Refresh:    refresh,
			AllowEmpty: allowEmpty,
		})
		var stale *modsync.StaleVersionError
		if errors.As(err, &stale) {
			return fmt.Errorf("%w; someone published since you last synced, pull or rerun with --refresh", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if report.Result != nil {
			app.RenderPublish(out, report.Result)
		} else {
			fmt.Fprintf(out, "No changes; version %d\n", report.Version)
		}
		if report.Uploaded > 0 {
			fmt.Fprintf(out, "Uploaded %d file(s)\n", report.Uploaded)
		}
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull [DIR]",
	Short: "Bring a directory up to the modpack's latest version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}

		report, err := newClient(project).Pull(cmd.Context(), dir, project)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Version %d: fetched %d, deleted %d\n", report.Version, report.Fetched, report.Deleted)
		for _, p := range report.Skipped {
			fmt.Fprintf(out, "  skipped %s (not uploaded yet)\n", p)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [DIR]",
	Short: "Show what a pull would change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}

		plan, err := newClient(project).Status(cmd.Context(), dir, project)
		if err != nil {
			return err
		}
		app.RenderPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history PATH",
	Short: "Show every recorded version of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}

		path := filepath.ToSlash(args[0])
		history, err := newClient(project).FileHistory(cmd.Context(), project.ModpackID, path)
		if err != nil {
			return err
		}
		app.RenderHistory(cmd.OutOrStdout(), path, history)
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes [DIR]",
	Short: "List paths changed since a version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		project, err := loadProject(dir)
		if err != nil {
			return err
		}
		if err := requireModpack(project); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetInt64("since")
		if !cmd.Flags().Changed("since") {
			state, err := config.LoadState(dir)
			if err != nil {
				return err
			}
			since = state.SyncVersion
		}

		cs, err := newClient(project).ChangesSince(cmd.Context(), project.ModpackID, since)
		if err != nil {
			return err
		}
		app.RenderChanges(cmd.OutOrStdout(), cs)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{modpackCmd, linkCmd, publishCmd, pullCmd, statusCmd, historyCmd, changesCmd} {
		c.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (defaults to the project config)")
		c.PersistentFlags().StringVar(&apiKey, "key", "", "API key for publishing and admin calls")
		c.PersistentFlags().StringVar(&modpackID, "modpack", "", "modpack ID (defaults to the project config)")
		c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log transfers to stderr")
		c.PersistentFlags().IntVar(&workers, "workers", client.DefaultWorkers, "parallel uploads or downloads")
	}

	for _, c := range []*cobra.Command{modpackCreateCmd, modpackUpdateCmd} {
		c.Flags().StringVar(&modpackGame, "game", "", "game name")
		c.Flags().StringVar(&modpackGameVer, "game-version", "", "game version")
		c.Flags().StringVar(&modpackLoader, "loader", "", "modloader name")
		c.Flags().StringVar(&modpackLoaderVer, "loader-version", "", "modloader version")
	}
	modpackUpdateCmd.Flags().String("name", "", "new name")

	modpackCmd.AddCommand(modpackCreateCmd)
	modpackCmd.AddCommand(modpackListCmd)
	modpackCmd.AddCommand(modpackShowCmd)
	modpackCmd.AddCommand(modpackUpdateCmd)
	modpackCmd.AddCommand(modpackDeleteCmd)

	scanCmd.Flags().String("format", app.FormatText, "output format: text, json or yaml")
	publishCmd.Flags().Bool("refresh", false, "diff against the server's current version")
	publishCmd.Flags().Bool("allow-empty", false, "commit a new version even if nothing changed")
	historyCmd.Flags().String("dir", ".", "project directory")
	changesCmd.Flags().Int64("since", 0, "version to compare against (defaults to the last synced version)")

	rootCmd.AddCommand(modpackCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(changesCmd)
}
