package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/bootstrap"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// NewTimelineCmd creates the timeline command.
func NewTimelineCmd() *cobra.Command {
	var (
		in            inputOptions
		conflictsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "timeline [files or directories...]",
		Short: "Build a patient timeline with progressions and negation conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.validate(args); err != nil {
				return err
			}
			_, rt, err := newRuntime(cmd, bootstrap.WithoutSinks())
			if err != nil {
				return err
			}
			defer rt.Close()

			state, err := runPipeline(cmd, rt, &in, args)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &timelineReport{
				RunID:         state.RunID,
				Timeline:      state.Timeline,
				Warnings:      stepWarnings(state),
				conflictsOnly: conflictsOnly,
			})
		},
	}

	in.register(cmd)
	cmd.Flags().BoolVar(&conflictsOnly, "conflicts-only", false, "text output shows only negation conflicts")
	return cmd
}

// timelineReport is the output of the timeline command.
type timelineReport struct {
	RunID string `json:"run_id"`
	clinical.Timeline
	Warnings []string `json:"warnings,omitempty"`

	conflictsOnly bool
}

func (r *timelineReport) String() string {
	var sb strings.Builder
	bold := color.New(color.Bold).SprintFunc()

	if !r.conflictsOnly {
		sb.WriteString(bold("Timeline") + "\n")
		for _, m := range r.Timeline.Timeline {
			fmt.Fprintf(&sb, "  %-12s %-10s %s  (%s)\n", dateOrUnknown(m.Date), m.Type, describeMention(m), m.Source)
		}

		sb.WriteString(bold("Progressions") + "\n")
		if len(r.Progressions) == 0 {
			sb.WriteString("  none\n")
		}
		for _, p := range r.Progressions {
			fmt.Fprintf(&sb, "  %s %s %s\n", p.Entity, colorPattern(p.Pattern), progressionDetail(p))
		}
	}

	sb.WriteString(bold("Conflicts") + "\n")
	if len(r.Conflicts) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range r.Conflicts {
		fmt.Fprintf(&sb, "  %s %s\n", color.RedString(c.Entity), c.Issue)
		for _, ev := range c.Events {
			state := color.GreenString("affirmed")
			if ev.Negated {
				state = color.RedString("negated")
			}
			fmt.Fprintf(&sb, "    %-12s %-8s %s\n", dateOrUnknown(ev.Date), state, ev.Source)
		}
	}
	writeWarnings(&sb, r.Warnings)
	return sb.String()
}

func (r *timelineReport) TableHeaders() []string {
	return []string{"DATE", "TYPE", "ENTITY", "VALUE", "NEGATED", "SOURCE"}
}

func (r *timelineReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Timeline.Timeline))
	for _, m := range r.Timeline.Timeline {
		rows = append(rows, []string{
			dateOrUnknown(m.Date), string(m.Type), m.Normalized,
			valueWithUnit(m), strconv.FormatBool(m.Negated), m.Source,
		})
	}
	return rows
}

func colorPattern(pattern string) string {
	switch pattern {
	case clinical.PatternIncreasing:
		return color.RedString(pattern)
	case clinical.PatternDecreasing:
		return color.BlueString(pattern)
	case clinical.PatternRecurrent:
		return color.YellowString(pattern)
	}
	return pattern
}

func progressionDetail(p clinical.Progression) string {
	if len(p.Values) > 0 {
		vals := make([]string, len(p.Values))
		for i, v := range p.Values {
			vals[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		return strings.Join(vals, " -> ")
	}
	return fmt.Sprintf("x%d", p.Occurrences)
}

//Personal.AI order the ending
