package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/ingestion"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/bootstrap"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/temporal"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// stdinSource names a document read from standard input.
const stdinSource = "stdin"

// inputOptions are the flags shared by every command that reads documents.
type inputOptions struct {
	stdin bool
	date  string
}

func (o *inputOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.stdin, "stdin", false, "read a single document from standard input")
	cmd.Flags().StringVar(&o.date, "date", "", "date (YYYY-MM-DD) for a --stdin document without one in its text")
}

func (o *inputOptions) validate(args []string) error {
	if o.stdin && len(args) > 0 {
		return errors.New(errors.ErrCodeValidation, "--stdin cannot be combined with file arguments")
	}
	if !o.stdin && len(args) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one file or directory is required (or --stdin)")
	}
	if o.date != "" {
		if _, ok := temporal.ParseDate(&o.date); !ok {
			return errors.Newf(errors.ErrCodeValidation, "--date %q is not YYYY-MM-DD", o.date)
		}
	}
	return nil
}

// runPipeline runs the orchestrator of rt over the command input and reports
// skipped inputs on stderr.
func runPipeline(cmd *cobra.Command, rt *bootstrap.Runtime, in *inputOptions, args []string) (*pipeline.PipelineState, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	var state *pipeline.PipelineState
	if in.stdin {
		doc, rerr := readStdinDocument(cmd.InOrStdin(), in.date)
		if rerr != nil {
			return nil, rerr
		}
		state, err = rt.Orchestrator.RunDocuments(ctx, []clinical.Document{doc})
	} else {
		state, err = rt.Orchestrator.Run(ctx, args)
	}

	if state != nil {
		for _, se := range state.ErrorsFor(pipeline.StepIngestion) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.YellowString("skipped:"), se.Err)
		}
	}
	return state, err
}

func readStdinDocument(r io.Reader, date string) (clinical.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return clinical.Document{}, errors.Wrap(err, errors.ErrCodeIngestionReadFailed, "failed to read standard input")
	}
	doc, err := ingestion.Prepare(stdinSource, string(raw))
	if err != nil {
		return clinical.Document{}, err
	}
	if doc.Date == nil && date != "" {
		doc.Date = clinical.StringPtr(date)
	}
	return doc, nil
}

// stepWarnings renders non-ingestion step errors for report footers.
func stepWarnings(state *pipeline.PipelineState) []string {
	var out []string
	for _, se := range state.Errors {
		if se.Step != pipeline.StepIngestion {
			out = append(out, se.Error())
		}
	}
	return out
}

//Personal.AI order the ending
