package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/baca/internal/config"
	"github.com/kingrea/baca/internal/errs"
	"github.com/kingrea/baca/internal/lilypond"
	"github.com/kingrea/baca/internal/segment"
	"github.com/kingrea/baca/internal/spacing"
	"github.com/kingrea/baca/internal/tui"
)

type rootOptions struct {
	projectDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "baca",
		Short:         "Build LilyPond score segments from YAML definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.projectDir, "project", "C", "", "project directory (defaults to cwd)")

	root.AddCommand(
		newInitCmd(opts),
		newBuildCmd(opts),
		newSpacingCmd(opts),
		newValidateCmd(opts),
		newWatchCmd(opts),
		newStatusCmd(opts),
		newPartsCmd(opts),
		newMetadataCmd(opts),
	)
	return root
}

func (o *rootOptions) project() (string, error) {
	dir := o.projectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = cwd
	}
	return filepath.Abs(dir)
}

// load initializes the .baca folder if needed and reads its config.
func (o *rootOptions) load() (*config.Config, error) {
	dir, err := o.project()
	if err != nil {
		return nil, err
	}
	if err := config.InitBacaDir(dir); err != nil {
		return nil, err
	}
	return config.NewConfig(dir)
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .baca folder with a default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", cfg.BacaProjectDir)
			return nil
		},
	}
}

type buildOptions struct {
	output     string
	all        bool
	activate   []string
	deactivate []string
}

func (bo *buildOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&bo.output, "output", "o", "", "output path (defaults to <build dir>/<segment>.ly)")
	cmd.Flags().StringSliceVar(&bo.activate, "activate", nil, "tag words whose lines are switched on")
	cmd.Flags().StringSliceVar(&bo.deactivate, "deactivate", nil, "tag words whose lines are commented out")
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	bo := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build [segment.yaml]",
		Short: "Build a segment and write its LilyPond file",
		Long: `Build one segment definition, or with --all every stale segment in the
segments directory in chain order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if bo.all {
				if len(args) > 0 || bo.output != "" {
					return fmt.Errorf("build: --all takes no segment or --output: %w", errs.ErrInvalidParameter)
				}
				return buildStale(cmd, cfg, bo)
			}
			if len(args) == 0 {
				return fmt.Errorf("build: name a segment file or pass --all: %w", errs.ErrInvalidParameter)
			}
			res, out, err := buildSegment(cmd.Context(), cfg, args[0], bo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (measures %d-%d)\n",
				out, res.Metadata.FirstMeasureNumber, res.Metadata.FinalMeasureNumber)
			return nil
		},
	}
	bo.flags(cmd)
	cmd.Flags().BoolVar(&bo.all, "all", false, "build every stale segment in the segments directory")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which segments need a build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			resolver, err := loadPlan(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, node := range resolver.Nodes() {
				line := fmt.Sprintf("%-12s %-9s %s", node.ID, node.State, node.Build)
				if node.Reason != "" {
					line += " (" + node.Reason + ")"
				}
				if node.Err != nil {
					line += ": " + node.Err.Error()
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			return nil
		},
	}
}

func newSpacingCmd(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "spacing <segment.yaml>",
		Short: "Inspect the spacing of a built segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			maker, lb, err := newMaker(cfg)
			if err != nil {
				return err
			}
			rebuild := func() ([]spacing.Measure, string, error) {
				def, err := segment.LoadDefinitionFile(args[0])
				if err != nil {
					return nil, "", err
				}
				res, err := maker.Build(ctx, def)
				if err != nil {
					return nil, def.Name, err
				}
				return res.Measures, def.Name, nil
			}
			rows, name, err := rebuild()
			if err != nil {
				return err
			}
			if plain {
				fmt.Fprint(cmd.OutOrStdout(), tui.Report(name, rows))
				return nil
			}
			app := tui.NewApp(name, rows,
				tui.WithLogbook(lb),
				tui.WithRebuilder(func() ([]spacing.Measure, error) {
					rows, _, err := rebuild()
					return rows, err
				}),
			)
			_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print a static table instead of the interactive view")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check every segment definition in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				dir = cfg.SegmentsDir()
			}
			defs, err := segment.LoadDir(dir)
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%d measures, %d commands)\n",
					def.Name, def.MeasureCount(), len(def.Commands))
			}
			return err
		},
	}
}

func newPartsCmd(opts *rootOptions) *cobra.Command {
	parts := &cobra.Command{
		Use:   "parts",
		Short: "Show or change which voices may carry part assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			for _, voice := range sortedKeys(cfg.Project.Parts) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", voice, strings.Join(cfg.Project.Parts[voice], ", "))
			}
			return nil
		},
	}
	parts.AddCommand(&cobra.Command{
		Use:   "set <voice> <section>",
		Short: "Allow a voice to carry assignments to a part section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return cfg.SetPart(args[0], args[1])
		},
	})
	return parts
}

func newMetadataCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [segment]",
		Short: "List built segments or show one segment's metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := newStore(cfg)
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				names, err := store.List()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			meta, err := store.Read(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "segment   %s\nbuild     %s\nmeasures  %d-%d (%d)\nfermatas  %v\n",
				meta.Segment, meta.BuildID, meta.FirstMeasureNumber, meta.FinalMeasureNumber,
				meta.MeasureCount, meta.FermataMeasureNumbers)
			for _, voice := range sortedKeys(meta.Persist) {
				fmt.Fprintf(out, "persist   %s=%d\n", voice, meta.Persist[voice])
			}
			return nil
		},
	}
}

// writeLilyPond applies tag toggles and writes the document.
func writeLilyPond(path, text string, bo *buildOptions) error {
	for _, word := range bo.activate {
		text, _ = lilypond.Activate(text, word)
	}
	for _, word := range bo.deactivate {
		text, _ = lilypond.Deactivate(text, word)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func buildSegment(ctx context.Context, cfg *config.Config, path string, bo *buildOptions) (*segment.Result, string, error) {
	def, err := segment.LoadDefinitionFile(path)
	if err != nil {
		return nil, "", err
	}
	maker, _, err := newMaker(cfg)
	if err != nil {
		return nil, "", err
	}
	return buildDefinition(ctx, cfg, maker, def, bo)
}

func buildDefinition(ctx context.Context, cfg *config.Config, maker *segment.Maker, def segment.Definition, bo *buildOptions) (*segment.Result, string, error) {
	res, err := maker.Build(ctx, def)
	if err != nil {
		return nil, "", err
	}
	out := bo.output
	if out == "" {
		out = filepath.Join(cfg.BuildDir(), def.Name+".ly")
	}
	if err := writeLilyPond(out, res.LilyPond, bo); err != nil {
		return nil, "", err
	}
	return res, out, nil
}

// buildStale builds every segment the plan queues, previous segments first.
func buildStale(cmd *cobra.Command, cfg *config.Config, bo *buildOptions) error {
	resolver, err := loadPlan(cfg)
	if err != nil {
		return err
	}
	queue, err := resolver.Queue()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(queue) == 0 {
		fmt.Fprintln(out, "all segments up to date")
		return nil
	}
	maker, _, err := newMaker(cfg)
	if err != nil {
		return err
	}
	for _, node := range queue {
		res, path, err := buildDefinition(cmd.Context(), cfg, maker, node.Definition, bo)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s (measures %d-%d)\n",
			path, res.Metadata.FirstMeasureNumber, res.Metadata.FinalMeasureNumber)
	}
	return nil
}
