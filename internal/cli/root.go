package cli

import (
	"fmt"

	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/spf13/cobra"
)

var (
	versionStr   = "dev"
	commitStr    = "unknown"
	buildTimeStr = "unknown"
)

// SetVersion sets the version information
func SetVersion(version, commit, buildTime string) {
	versionStr = version
	commitStr = commit
	buildTimeStr = buildTime
}

// app carries state shared by the subcommands.
type app struct {
	configPath   string
	patternsPath string
	verbose      bool

	cfg    *config.Config
	log    *logger.Logger
	engine *privacy.Engine
}

// NewRootCmd builds the redact command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "redact",
		Short: "Reversible masking of personal data in text",
		Long: `redact replaces names, email addresses, phone numbers, postal addresses
and organization names with placeholders such as [Person_A], and restores
them afterwards from the saved mapping table.

Examples:
  echo "Mail tanaka@example.com" | redact mask --mapping-out map.json
  redact restore reply.txt --mapping map.json
  redact batch --input chats.csv --output masked.jsonl
  redact patterns --patterns extra.yaml`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.patternsPath, "patterns", "", "YAML file of additional custom patterns")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newMaskCmd(a),
		newRestoreCmd(a),
		newPatternsCmd(a),
		newBatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

// setup loads configuration and builds the engine before any subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.patternsPath != "" {
		extra, err := config.LoadPatternFile(a.patternsPath)
		if err != nil {
			return err
		}
		cfg.Privacy.CustomPatterns = mergePatterns(cfg.Privacy.CustomPatterns, extra)
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// privacy.enabled only gates the daemon; the CLI always masks
	cfg.Privacy.Enabled = true

	engine, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.engine = engine
	return nil
}

// mergePatterns overlays extra on base by key; new keys are appended.
func mergePatterns(base, extra []config.CustomPattern) []config.CustomPattern {
	out := append([]config.CustomPattern(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Key] = i
	}
	for _, p := range extra {
		if i, ok := index[p.Key]; ok {
			out[i] = p
			continue
		}
		index[p.Key] = len(out)
		out = append(out, p)
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "redact %s\n", versionStr)
			fmt.Fprintf(out, "  commit: %s\n", commitStr)
			fmt.Fprintf(out, "  built:  %s\n", buildTimeStr)
		},
	}
}

// checkRules fails on rule keys the engine does not know.
func (a *app) checkRules(keys []string) error {
	known := make(map[string]bool)
	for _, p := range a.engine.ListPatterns() {
		known[p.Key] = true
	}
	for _, k := range keys {
		if !known[k] {
			return fmt.Errorf("%w: %s", privacy.ErrUnknownRule, k)
		}
	}
	return nil
}
