package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashwinyue/tracesmith/internal/config"
	"github.com/ashwinyue/tracesmith/internal/service/demo"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// ========== 全局命令变量 ==========

var (
	configPath string
	genOpts    generateOptions
	demoPolicy string
	tokenOpts  struct {
		subject string
		ttl     time.Duration
	}

	rootCmd = &cobra.Command{
		Use:           "tracesmith",
		Short:         "Generate graded SFT / QA datasets from policy documents",
		Long:          "tracesmith turns a policy document into a JSONL training dataset by generating, grading and refining reasoning traces.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	generateCmd = &cobra.Command{
		Use:   "generate <source>",
		Short: "Generate a dataset from literal text, a file path or a URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Generate 5 SFT traces from a built-in policy into demo_output.jsonl",
		Args:  cobra.NoArgs,
		RunE:  runDemo,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracesmith %s\n", version)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	queryCmd = &cobra.Command{
		Use:   "query <file.jsonl> <sql>",
		Short: "Run a read-only SELECT over a saved dataset (table: traces)",
		Args:  cobra.ExactArgs(2),
		RunE:  runQuery,
	}

	statsCmd = &cobra.Command{
		Use:   "stats <file.jsonl>",
		Short: "Print schema and summary statistics of a saved dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the job API",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: $CONFIG_PATH)")

	// --- generate ---
	f := generateCmd.Flags()
	f.IntVarP(&genOpts.traces, "traces", "n", 0, "number of traces to generate")
	f.StringVarP(&genOpts.format, "format", "f", "", "dataset type: sft or qa")
	f.StringVarP(&genOpts.output, "output", "o", "", "output JSONL path (default: auto-named in generation.outputDir)")
	f.StringVarP(&genOpts.model, "model", "m", "", "generation model name")
	f.StringVar(&genOpts.gradingModel, "grading-model", "", "grading model name (default: same as --model)")
	f.IntVar(&genOpts.workers, "workers", 0, "concurrent traces (0 = auto from rate limit)")
	f.IntVar(&genOpts.maxIterations, "max-iterations", 0, "refinement iterations per trace")
	f.BoolVar(&genOpts.noPlan, "no-plan", false, "skip the scenario planning call")
	f.BoolVar(&genOpts.includeMetadata, "include-metadata", false, "add a metadata object to every line")

	// --- demo ---
	demoCmd.Flags().StringVar(&demoPolicy, "policy", demo.DefaultPolicy, fmt.Sprintf("built-in policy %v", demo.Names()))

	// --- token ---
	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "tracesmith-cli", "token subject")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(generateCmd, demoCmd, versionCmd, serveCmd, queryCmd, statsCmd, tokenCmd)
}

// loadConfig 按 --config、CONFIG_PATH 的顺序查找配置文件，都为空时只用默认值和环境变量
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return config.Load(path)
}
