package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mitool/mi"
	"github.com/mitool/mi/internal/config"
	"github.com/mitool/mi/internal/configfile"
	"github.com/mitool/mi/internal/debug"
	"github.com/mitool/mi/internal/paths"
	"github.com/mitool/mi/internal/storage"
	"github.com/mitool/mi/internal/thoughtdb"
)

// Version information (set by build flags)
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	homeDir     string
	projectRoot string
	jsonOutput  bool

	store *mi.Store
)

var rootCmd = &cobra.Command{
	Use:   "mi",
	Short: "mi - durable claim/node/edge store for agent runs",
	Long: `mi keeps an append-only store of claims, notes, and typed relations
that reference evidence event ids. Records live in per-scope JSONL logs;
reads go through a cached materialized view.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("mi version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Priority: flags > viper (config file + env vars) > defaults
		if homeDir == "" {
			homeDir = paths.DefaultHomeDir()
		}
		if err := config.Initialize(homeDir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		}
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if projectRoot == "" {
			projectRoot = config.GetString("project_dir")
		}
		if projectRoot == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot determine project root: %v\n", err)
				os.Exit(1)
			}
			projectRoot = cwd
		}

		if logFile := config.GetString("log.file"); logFile != "" {
			debug.SetLogFile(logFile, config.GetInt("log.max_size_mb"), config.GetInt("log.max_backups"))
		}

		var err error
		store, err = mi.Open(homeDir, projectRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		debug.Logf("store opened: home=%s project=%s id=%s", homeDir, projectRoot, store.ProjectID())

		ensureProjectMetadata()
	},
}

// ensureProjectMetadata writes the project's metadata.json on first use
// so "run from anywhere" tooling can map ids back to root paths.
func ensureProjectMetadata() {
	p, err := paths.New(homeDir, projectRoot)
	if err != nil {
		return
	}
	existing, err := configfile.Load(p.ProjectDir())
	if err != nil || existing != nil {
		return
	}
	cfg := &configfile.Config{
		ProjectID: p.ProjectID,
		RootPath:  p.ProjectRoot,
		CreatedTS: storage.NowRFC3339(),
	}
	if err := cfg.Save(p.ProjectDir()); err != nil {
		debug.Logf("saving project metadata: %v", err)
	}
}

func scopeFromFlag(cmd *cobra.Command) thoughtdb.Scope {
	s, _ := cmd.Flags().GetString("scope")
	return thoughtdb.NormalizeScope(thoughtdb.Scope(s))
}

func main() {
	err := rootCmd.Execute()
	if store != nil {
		store.FlushSnapshots()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "mi home directory (default: $MI_HOME or ~/.mi)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", "", "Project root (default: config or current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
