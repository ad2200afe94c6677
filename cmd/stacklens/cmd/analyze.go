package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lgili/stacklens/internal/analyze"
	"github.com/lgili/stacklens/internal/report"
	"github.com/lgili/stacklens/internal/store"
)

var (
	analyzeSuFile    string
	analyzeTarget    string
	analyzeAll       bool
	analyzeSourceDir string
	analyzeEntries   []string
	analyzeOutput    string
	analyzeJSON      string
	analyzeSave      bool
	analyzeLabel     string
	analyzeTop       int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze stack usage from GCC .su files",
	Long: `Parse the .su files a -fstack-usage build emits, scan the C sources
for call relationships, and report worst-case stack depths.

The analyze command:
- Parses per-function stack frames from .su files
- Builds a heuristic call graph from the C sources
- Solves the worst-case call path from each critical entry point
- Renders a Markdown report and optionally a JSON snapshot
- Persists the run to .stacklens/stacklens.db with --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		analyzer := analyze.New(cfg, analyze.Options{
			SuFile:    analyzeSuFile,
			Target:    analyzeTarget,
			All:       analyzeAll,
			SourceDir: analyzeSourceDir,
			Entries:   analyzeEntries,
		})
		if isatty.IsTerminal(os.Stderr.Fd()) {
			analyzer.SetProgress(os.Stderr)
		}

		res, err := analyzer.Run()
		if err != nil {
			return err
		}

		top := analyzeTop
		if !cmd.Flags().Changed("top") {
			top = cfg.Report.Top
		}

		md := report.Markdown(res, top)
		if analyzeOutput != "" {
			if err := os.WriteFile(analyzeOutput, []byte(md), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
		} else {
			fmt.Print(md)
		}

		if analyzeJSON != "" {
			f, err := os.Create(analyzeJSON)
			if err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			if err := report.NewSnapshot(res).WriteJSON(f); err != nil {
				f.Close()
				return fmt.Errorf("writing snapshot: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
		}

		if analyzeSave {
			st, err := store.Open(".")
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			id, err := st.SaveResult(res, analyzeLabel)
			if err != nil {
				return fmt.Errorf("saving run: %w", err)
			}
			if err := st.WriteIndexJSON(); err != nil {
				return fmt.Errorf("writing index: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Saved run %s to %s\n", id, st.DBPath())
		}

		// The report on stdout speaks for itself; only summarize when
		// it went to a file.
		if analyzeOutput != "" {
			fmt.Println()
			fmt.Printf("Analysis complete!\n")
			fmt.Printf("  Files:    %d\n", len(res.SuFiles))
			fmt.Printf("  Records:  %d\n", len(res.Records))
			if res.Skipped > 0 {
				fmt.Printf("  Skipped:  %d malformed lines\n", res.Skipped)
			}
			fmt.Printf("  Duration: %s\n", res.Duration.Round(time.Millisecond))
			fmt.Printf("  Report:   %s\n", analyzeOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeSuFile, "su", "", "analyze a single .su file")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "", "analyze one build target under su_root")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "analyze every .su file under su_root")
	analyzeCmd.Flags().StringVar(&analyzeSourceDir, "source-dir", "", "C source tree to scan for call relationships")
	analyzeCmd.Flags().StringSliceVar(&analyzeEntries, "critical-path", nil, "entry point to solve the worst-case path for (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the Markdown report to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeJSON, "json", "", "write a JSON snapshot for later diffing")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the run to .stacklens/stacklens.db")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "", "label for the saved run")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "number of functions in the top consumers table")
}
