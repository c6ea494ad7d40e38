package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zygi/r-playground-mcp/plot"
	"github.com/zygi/r-playground-mcp/session"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run R code once and exit",
	Long: `Execute R code in a fresh session and print the result.

Code can be provided via:
  - File argument: rplayground run script.R
  - Inline flag: rplayground run -c 'mean(1:10)'
  - Stdin: echo 'mean(1:10)' | rplayground run`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "R code to execute")
	cmd.Flags().String("plot-dir", ".", "Directory to save captured plots into")
}

func runRun(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	plotDir, _ := cmd.Flags().GetString("plot-dir")

	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	default:
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			cmd.Help()
			return
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
		if source == "" {
			cmd.Help()
			return
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	factory, cleanup, err := buildFactory(cmd, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	manager := session.NewManager(factory, managerOptions(cfg)...)
	defer manager.CloseAll()

	id, err := manager.CreateSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res, err := manager.Execute(context.Background(), id, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printResult(res)

	if len(res.Images) > 0 {
		if err := savePlots(plotDir, res.Images); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plots: %v\n", err)
			os.Exit(1)
		}
	}
	if res.Err != nil {
		os.Exit(1)
	}
}

func printResult(res *session.Result) {
	if res.Stdout != "" {
		fmt.Print(res.Stdout)
		if !strings.HasSuffix(res.Stdout, "\n") {
			fmt.Println()
		}
	}
	if res.HasValue {
		fmt.Println(res.Value)
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
		if !strings.HasSuffix(res.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %s\n", res.Err.Kind, res.Err.Message)
	}
}

func savePlots(dir string, images []plot.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, img := range images {
		path := filepath.Join(dir, fmt.Sprintf("rplot_%03d.%s", i+1, img.Format))
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved plot: %s\n", path)
	}
	return nil
}
