package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// NewVocabCmd creates the vocab command.
func NewVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Print the active extraction vocabulary",
		Long:  "Print the keyword lists, lab patterns and negation cues in use: the built-in set, or extractor.vocabulary_file when configured.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			vocab, origin, err := activeVocabulary(cliCtx.Config.Extractor.VocabularyFile)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &vocabReport{Origin: origin, Vocabulary: vocab})
		},
	}
	cmd.AddCommand(newVocabValidateCmd())
	return cmd
}

func newVocabValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a YAML vocabulary file parses and its lab patterns compile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocab, err := clinical_nlp.LoadVocabularyFile(args[0])
			if err != nil {
				return err
			}
			terms := 0
			for _, ts := range vocab.Keywords {
				terms += len(ts)
			}
			PrintSuccess(cmd, fmt.Sprintf("%s: %d keyword terms, %d lab patterns", args[0], terms, len(vocab.LabPatterns)))
			return nil
		},
	}
}

func activeVocabulary(path string) (clinical_nlp.Vocabulary, string, error) {
	if path == "" {
		return clinical_nlp.DefaultVocabulary(), "built-in", nil
	}
	v, err := clinical_nlp.LoadVocabularyFile(path)
	return v, path, err
}

// vocabReport is the output of the vocab command.
type vocabReport struct {
	Origin string `json:"origin"`
	clinical_nlp.Vocabulary
}

func (r *vocabReport) categories() []clinical.EntityType {
	cats := make([]clinical.EntityType, 0, len(r.Keywords))
	for c := range r.Keywords {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

func (r *vocabReport) String() string {
	var sb strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(&sb, "%s %s\n", bold("vocabulary:"), r.Origin)
	for _, c := range r.categories() {
		fmt.Fprintf(&sb, "  %-11s %s\n", c, strings.Join(r.Keywords[c], ", "))
	}
	sb.WriteString(bold("lab patterns") + "\n")
	for _, lp := range r.LabPatterns {
		fmt.Fprintf(&sb, "  %-11s %s\n", lp.Name, lp.Pattern)
	}
	fmt.Fprintf(&sb, "%s %s\n", bold("negation cues:"), strings.Join(r.NegationCues, ", "))
	fmt.Fprintf(&sb, "%s %s\n", bold("lab report markers:"), strings.Join(r.LabMarkers, ", "))
	return sb.String()
}

func (r *vocabReport) TableHeaders() []string { return []string{"CATEGORY", "TERMS", "EXAMPLES"} }

func (r *vocabReport) TableRows() [][]string {
	var rows [][]string
	for _, c := range r.categories() {
		terms := r.Keywords[c]
		examples := terms
		if len(examples) > 3 {
			examples = examples[:3]
		}
		rows = append(rows, []string{string(c), strconv.Itoa(len(terms)), strings.Join(examples, ", ")})
	}
	names := make([]string, 0, len(r.LabPatterns))
	for _, lp := range r.LabPatterns {
		names = append(names, lp.Name)
	}
	if len(names) > 3 {
		names = names[:3]
	}
	rows = append(rows, []string{string(clinical.TypeLab), strconv.Itoa(len(r.LabPatterns)), strings.Join(names, ", ")})
	return rows
}

//Personal.AI order the ending
