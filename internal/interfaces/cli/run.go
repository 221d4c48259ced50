package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/config"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// NewRunCmd creates the run command, which executes every pipeline step and
// the configured sinks.
func NewRunCmd() *cobra.Command {
	var (
		in         inputOptions
		sink       string
		resultsDir string
		noPublish  bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "run [files or directories...]",
		Short: "Run the full pipeline and save per-document results",
		Long: "Run ingestion, extraction, validation, timeline and chunking. Results go to the\n" +
			"configured sink (file, minio or none); chunks are published to Kafka when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.validate(args); err != nil {
				return err
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if sink != "" {
				cfg.Output.Sink = strings.ToLower(sink)
			}
			if resultsDir != "" {
				cfg.Output.ResultsDir = resultsDir
			}
			if noPublish {
				cfg.Kafka.Enabled = false
			}
			if noCache {
				cfg.Redis.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			_, rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			state, err := runPipeline(cmd, rt, &in, args)
			if err != nil {
				if errors.IsCode(err, errors.ErrCodeNoDocuments) {
					return errors.Wrap(err, errors.ErrCodeNoDocuments, "nothing to run: every input was skipped")
				}
				return err
			}
			return PrintResult(cmd, newRunReport(state, cfg))
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&sink, "sink", "", "result sink override: file, minio or none")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "directory for the file sink")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "do not publish chunks to Kafka")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the Redis extraction cache")
	return cmd
}

// runReport summarizes a pipeline run.
type runReport struct {
	RunID        string        `json:"run_id"`
	Documents    int           `json:"documents"`
	Mentions     int           `json:"mentions"`
	Negated      int           `json:"negated"`
	Progressions int           `json:"progressions"`
	Conflicts    int           `json:"conflicts"`
	Chunks       int           `json:"chunks"`
	Sink         string        `json:"sink"`
	Published    bool          `json:"published"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	Errors       []string      `json:"errors,omitempty"`

	State *pipeline.PipelineState `json:"state"`
}

func newRunReport(state *pipeline.PipelineState, cfg *config.Config) *runReport {
	r := &runReport{
		RunID:        state.RunID,
		Documents:    len(state.Documents),
		Mentions:     len(state.Mentions),
		Progressions: len(state.Timeline.Progressions),
		Conflicts:    len(state.Timeline.Conflicts),
		Chunks:       len(state.Chunks),
		Sink:         cfg.Output.Sink,
		Published:    cfg.Kafka.Enabled && len(state.ErrorsFor(pipeline.StepPublish)) == 0 && len(state.Chunks) > 0,
		Elapsed:      time.Since(state.StartedAt),
		Errors:       state.ErrorMessages(),
		State:        state,
	}
	for _, m := range state.Mentions {
		if m.Negated {
			r.Negated++
		}
	}
	return r
}

func (r *runReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", color.New(color.Bold).Sprint("run"), r.RunID)
	fmt.Fprintf(&sb, "  documents     %d\n", r.Documents)
	fmt.Fprintf(&sb, "  mentions      %d (%s)\n", r.Mentions, color.RedString("%d negated", r.Negated))
	fmt.Fprintf(&sb, "  progressions  %d\n", r.Progressions)
	conflicts := strconv.Itoa(r.Conflicts)
	if r.Conflicts > 0 {
		conflicts = color.RedString(conflicts)
	}
	fmt.Fprintf(&sb, "  conflicts     %s\n", conflicts)
	fmt.Fprintf(&sb, "  chunks        %d\n", r.Chunks)
	fmt.Fprintf(&sb, "  sink          %s\n", r.Sink)
	if r.Published {
		fmt.Fprintf(&sb, "  published     %s\n", color.GreenString("yes"))
	}
	fmt.Fprintf(&sb, "  elapsed       %s\n", r.Elapsed.Round(time.Millisecond))
	for _, e := range r.Errors {
		fmt.Fprintf(&sb, "%s %s\n", color.YellowString("error:"), e)
	}
	return sb.String()
}

func (r *runReport) TableHeaders() []string {
	return []string{"RUN_ID", "DOCUMENTS", "MENTIONS", "NEGATED", "PROGRESSIONS", "CONFLICTS", "CHUNKS", "ERRORS"}
}

func (r *runReport) TableRows() [][]string {
	return [][]string{{
		r.RunID, strconv.Itoa(r.Documents), strconv.Itoa(r.Mentions), strconv.Itoa(r.Negated),
		strconv.Itoa(r.Progressions), strconv.Itoa(r.Conflicts), strconv.Itoa(r.Chunks), strconv.Itoa(len(r.Errors)),
	}}
}

//Personal.AI order the ending
