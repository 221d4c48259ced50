package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/bootstrap"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// NewChunksCmd creates the chunks command.
func NewChunksCmd() *cobra.Command {
	var (
		in       inputOptions
		maxChars         int
		idMode           string
		categoryFallback bool
	)

	cmd := &cobra.Command{
		Use:   "chunks [files or directories...]",
		Short: "Assemble retrieval chunks grouped by source, date and section",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.validate(args); err != nil {
				return err
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if maxChars > 0 {
				cliCtx.Config.Chunking.MaxChars = maxChars
			}
			if idMode != "" {
				cliCtx.Config.Chunking.ChunkIDMode = rag_prep.ChunkIDMode(strings.ToLower(idMode))
			}
			if cmd.Flags().Changed("category-fallback") {
				cliCtx.Config.Chunking.CategoryFallback = categoryFallback
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
			return PrintResult(cmd, &chunksReport{
				RunID:    state.RunID,
				Chunks:   state.Chunks,
				Warnings: stepWarnings(state),
			})
		},
	}

	in.register(cmd)
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "chunk text limit in characters (default from config)")
	cmd.Flags().StringVar(&idMode, "id-mode", "", "chunk id mode: random or content (default from config)")
	cmd.Flags().BoolVar(&categoryFallback, "category-fallback", false, "order by category rank when a context is missing from the first one")
	return cmd
}

// chunksReport is the output of the chunks command.
type chunksReport struct {
	RunID    string           `json:"run_id"`
	Chunks   []clinical.Chunk `json:"chunks"`
	Warnings []string         `json:"warnings,omitempty"`
}

func (r *chunksReport) String() string {
	var sb strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	for _, c := range r.Chunks {
		fmt.Fprintf(&sb, "%s  %s  %s  %s\n", bold(c.ChunkID), c.Source, dateOrUnknown(c.Date), c.Section)
		fmt.Fprintf(&sb, "  entities: %s\n", strings.Join(c.Entities, ", "))
		if len(c.Metadata.NegatedEntities) > 0 {
			fmt.Fprintf(&sb, "  negated:  %s\n", color.RedString(strings.Join(c.Metadata.NegatedEntities, ", ")))
		}
		for _, line := range strings.Split(c.Text, "\n") {
			fmt.Fprintf(&sb, "  | %s\n", line)
		}
	}
	if len(r.Chunks) == 0 {
		sb.WriteString("no chunks\n")
	}
	writeWarnings(&sb, r.Warnings)
	return sb.String()
}

func (r *chunksReport) TableHeaders() []string {
	return []string{"CHUNK_ID", "SOURCE", "DATE", "SECTION", "ENTITIES", "NEGATED", "CHARS"}
}

func (r *chunksReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		rows = append(rows, []string{
			c.ChunkID, c.Source, dateOrUnknown(c.Date), c.Section,
			strings.Join(c.Entities, ","), strings.Join(c.Metadata.NegatedEntities, ","),
			strconv.Itoa(len([]rune(c.Text))),
		})
	}
	return rows
}

//Personal.AI order the ending
