package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/services"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print every step's output",
	Long: `Run executes the whole pipeline (or one step with --step) without the
HTTP server. Agents come from --agents or the configured agents_file.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().String("agents", "", "agent configuration file (JSON or YAML)")
	runCmd.Flags().String("task", "", "global task")
	runCmd.Flags().String("context-file", "", "text file used as document context")
	runCmd.Flags().Bool("independent", false, "do not pass outputs to the next step")
	runCmd.Flags().Int("step", -1, "run only the step at this index")
	runCmd.Flags().Bool("json", false, "print the run report as JSON")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	// Logs go to stderr so stdout carries only results.
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	if agents, _ := cmd.Flags().GetString("agents"); agents != "" {
		cfg.AgentsFile = agents
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	patch := services.GlobalsPatch{}
	if task, _ := cmd.Flags().GetString("task"); task != "" {
		patch.GlobalTask = &task
	}
	if path, _ := cmd.Flags().GetString("context-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading context file: %w", err)
		}
		text := string(data)
		patch.OCRText = &text
	}
	independent, _ := cmd.Flags().GetBool("independent")
	propagation := !independent
	patch.Propagation = &propagation
	a.session.UpdateGlobals(patch)

	var report services.RunReport
	if index, _ := cmd.Flags().GetInt("step"); index >= 0 {
		report, err = a.engine.RunOne(cmd.Context(), index)
	} else {
		report, err = a.engine.RunAll(cmd.Context())
	}
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(cmd.OutOrStdout(), report)
	if report.Run.Outcome != domain.RunOutcomeCompleted {
		return fmt.Errorf("run %s: %d failed, %d not run", report.Run.Outcome, report.Run.Failed, report.Run.NotRun)
	}
	return nil
}

func printReport(w io.Writer, report services.RunReport) {
	for i, st := range report.Steps {
		fmt.Fprintf(w, "== %d. %s [%s/%s] %s (%d tokens)\n", i+1, st.Name, st.Provider, st.Model, st.Status, st.TokenUsage)
		fmt.Fprintln(w, st.Output)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Run %s: %d succeeded, %d failed, %d not run, %d tokens, %dms\n",
		report.Run.Outcome, report.Run.Succeeded, report.Run.Failed, report.Run.NotRun,
		report.Run.TotalTokens, report.Run.DurationMs)
	if report.LevelUp {
		fmt.Fprintln(w, "Level up!")
	}
}
