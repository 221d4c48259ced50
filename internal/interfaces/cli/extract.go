package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/bootstrap"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	var (
		in           inputOptions
		types        []string
		affirmedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "extract [files or directories...]",
		Short: "Extract clinical entity mentions",
		Long:  "Extract symptoms, conditions, medications, procedures and labs from each document, with negation and context.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.validate(args); err != nil {
				return err
			}
			filter, err := parseTypeFilter(types)
			if err != nil {
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

			report := &extractReport{RunID: state.RunID, Warnings: stepWarnings(state)}
			for _, res := range state.Results {
				res.Entities = filterMentions(res.Entities, filter, affirmedOnly)
				report.Documents = append(report.Documents, res)
			}
			return PrintResult(cmd, report)
		},
	}

	in.register(cmd)
	cmd.Flags().StringSliceVar(&types, "type", nil, "only show these entity types (symptom, condition, medication, procedure, lab)")
	cmd.Flags().BoolVar(&affirmedOnly, "affirmed-only", false, "hide negated mentions")
	return cmd
}

func parseTypeFilter(types []string) (map[clinical.EntityType]bool, error) {
	if len(types) == 0 {
		return nil, nil
	}
	filter := make(map[clinical.EntityType]bool, len(types))
	for _, t := range types {
		et := clinical.EntityType(strings.ToLower(strings.TrimSpace(t)))
		if !et.IsValid() {
			return nil, errors.Newf(errors.ErrCodeValidation, "unknown entity type %q", t)
		}
		filter[et] = true
	}
	return filter, nil
}

func filterMentions(ms []clinical.EntityMention, types map[clinical.EntityType]bool, affirmedOnly bool) []clinical.EntityMention {
	out := make([]clinical.EntityMention, 0, len(ms))
	for _, m := range ms {
		if types != nil && !types[m.Type] {
			continue
		}
		if affirmedOnly && m.Negated {
			continue
		}
		out = append(out, m)
	}
	return out
}

// extractReport is the output of the extract command.
type extractReport struct {
	RunID     string                    `json:"run_id"`
	Documents []clinical.DocumentResult `json:"documents"`
	Warnings  []string                  `json:"warnings,omitempty"`
}

func (r *extractReport) String() string {
	var sb strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	for _, doc := range r.Documents {
		fmt.Fprintf(&sb, "%s  %s  %s\n", bold(doc.DocMetadata.Source), doc.DocMetadata.DocType, dateOrUnknown(doc.DocMetadata.Date))
		if len(doc.Entities) == 0 {
			sb.WriteString("  (no mentions)\n")
		}
		for _, m := range doc.Entities {
			fmt.Fprintf(&sb, "  %-10s %s\n", m.Type, describeMention(m))
		}
		if doc.ConclusionText != "" {
			fmt.Fprintf(&sb, "  %s %s\n", color.CyanString("conclusion:"), doc.ConclusionText)
		}
	}
	writeWarnings(&sb, r.Warnings)
	return sb.String()
}

func (r *extractReport) TableHeaders() []string {
	return []string{"SOURCE", "TYPE", "ENTITY", "NORMALIZED", "VALUE", "NEGATED", "DATE"}
}

func (r *extractReport) TableRows() [][]string {
	var rows [][]string
	for _, doc := range r.Documents {
		for _, m := range doc.Entities {
			rows = append(rows, []string{
				m.Source, string(m.Type), m.Entity, m.Normalized,
				valueWithUnit(m), strconv.FormatBool(m.Negated), dateOrUnknown(m.Date),
			})
		}
	}
	return rows
}

// describeMention renders a mention with its value and a colored negation
// marker.
func describeMention(m clinical.EntityMention) string {
	s := m.Entity
	if v := valueWithUnit(m); v != "" {
		s += " = " + v
	}
	if m.Negated {
		return color.RedString(s + " [negated]")
	}
	return color.GreenString(s)
}

func valueWithUnit(m clinical.EntityMention) string {
	if m.Value == nil {
		return ""
	}
	if m.Unit == nil {
		return *m.Value
	}
	return *m.Value + " " + *m.Unit
}

func dateOrUnknown(d *string) string {
	if d == nil {
		return "unknown-date"
	}
	return *d
}

func writeWarnings(sb *strings.Builder, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(sb, "%s %s\n", color.YellowString("warning:"), w)
	}
}

//Personal.AI order the ending
