package temporal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

func mention(normalized string, typ clinical.EntityType, date *string, negated bool) clinical.EntityMention {
	return clinical.EntityMention{
		Entity:     normalized,
		Normalized: normalized,
		Type:       typ,
		Negated:    negated,
		Date:       date,
		Context:    normalized + " context",
		Source:     "note.txt",
	}
}

func lab(value string, date string) clinical.EntityMention {
	m := mention("HEMOGLOBIN", clinical.TypeLab, clinical.StringPtr(date), false)
	m.Value = clinical.StringPtr(value)
	m.Unit = clinical.StringPtr("g/dL")
	return m
}

func datesOf(ms []clinical.EntityMention) []*string {
	out := make([]*string, len(ms))
	for i, m := range ms {
		out[i] = m.Date
	}
	return out
}

// =========================================================================
// Ordering
// =========================================================================

func TestOrderByDate_UnknownLast(t *testing.T) {
	in := []clinical.EntityMention{
		mention("A", clinical.TypeSymptom, clinical.StringPtr("2024-08-01"), false),
		mention("B", clinical.TypeSymptom, nil, false),
		mention("C", clinical.TypeSymptom, clinical.StringPtr("2024-06-01"), false),
	}
	got := OrderByDate(in)

	assert.Equal(t, []*string{clinical.StringPtr("2024-06-01"), clinical.StringPtr("2024-08-01"), nil}, datesOf(got))
	// Input is untouched.
	assert.Equal(t, "A", in[0].Normalized)
}

func TestOrderByDate_StableForTiesAndGarbage(t *testing.T) {
	in := []clinical.EntityMention{
		mention("X1", clinical.TypeSymptom, clinical.StringPtr("14/08/2024"), false),
		mention("D1", clinical.TypeSymptom, clinical.StringPtr("2024-07-10"), false),
		mention("X2", clinical.TypeSymptom, nil, false),
		mention("D2", clinical.TypeSymptom, clinical.StringPtr("2024-07-10"), false),
		mention("X3", clinical.TypeSymptom, clinical.StringPtr(""), false),
	}
	got := OrderByDate(in)

	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.Normalized
	}
	assert.Equal(t, []string{"D1", "D2", "X1", "X2", "X3"}, ids)
}

func TestParseDate(t *testing.T) {
	_, ok := ParseDate(nil)
	assert.False(t, ok)
	_, ok = ParseDate(clinical.StringPtr("2024-02-30"))
	assert.False(t, ok)
	d, ok := ParseDate(clinical.StringPtr(" 2024-02-29 "))
	assert.True(t, ok)
	assert.Equal(t, 29, d.Day())

	d, ok = ParseDate(clinical.StringPtr("2024-8-1"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC), d)
	_, ok = ParseDate(clinical.StringPtr("2024-13-1"))
	assert.False(t, ok)
}

func TestOrderByDate_UnpaddedDates(t *testing.T) {
	mk := func(n, d string) clinical.EntityMention {
		return clinical.EntityMention{Normalized: n, Date: clinical.StringPtr(d)}
	}
	out := OrderByDate([]clinical.EntityMention{
		mk("LATE", "2024-08-14"),
		mk("EARLY", "2024-8-1"),
		{Normalized: "UNKNOWN"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"EARLY", "LATE", "UNKNOWN"}, []string{out[0].Normalized, out[1].Normalized, out[2].Normalized})
}

// =========================================================================
// Progressions
// =========================================================================

func TestBuild_LabTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"decreasing", []string{"12.0", "10.2"}, clinical.PatternDecreasing},
		{"increasing", []string{"9.8", "11.4"}, clinical.PatternIncreasing},
		{"stable", []string{"11.0", "11"}, clinical.PatternStable},
		{"middle ignored", []string{"10", "3", "10"}, clinical.PatternStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ms []clinical.EntityMention
			for i, v := range tt.values {
				ms = append(ms, lab(v, []string{"2024-06-01", "2024-07-01", "2024-08-01"}[i]))
			}
			tl := NewBuilder().Build(ms)
			require.Len(t, tl.Progressions, 1)
			assert.Equal(t, tt.want, tl.Progressions[0].Pattern)
			assert.Equal(t, clinical.TypeLab, tl.Progressions[0].Type)
			assert.Len(t, tl.Progressions[0].Values, len(tt.values))
		})
	}
}

func TestBuild_LabTrendSkipsUnparsableValues(t *testing.T) {
	ms := []clinical.EntityMention{
		lab("12.0", "2024-06-01"),
		lab("H", "2024-07-01"),
		lab("10.2", "2024-08-01"),
	}
	ms = append(ms, mention("HEMOGLOBIN", clinical.TypeLab, clinical.StringPtr("2024-09-01"), false))

	tl := NewBuilder().Build(ms)
	require.Len(t, tl.Progressions, 1)
	p := tl.Progressions[0]
	assert.Equal(t, []float64{12.0, 10.2}, p.Values)
	assert.Equal(t, []*string{clinical.StringPtr("2024-06-01"), clinical.StringPtr("2024-08-01")}, p.Dates)
	// Skipped values stay in history.
	assert.Len(t, tl.EntityHistory.Get("HEMOGLOBIN"), 4)
}

func TestBuild_LabWithOneNumericValueHasNoProgression(t *testing.T) {
	tl := NewBuilder().Build([]clinical.EntityMention{lab("12.0", "2024-06-01"), lab("n/a", "2024-07-01")})
	assert.Empty(t, tl.Progressions)
}

func TestBuild_MedicationAndProcedureHaveNoProgression(t *testing.T) {
	tl := NewBuilder().Build([]clinical.EntityMention{
		mention("ASPIRIN", clinical.TypeMedication, clinical.StringPtr("2024-06-01"), false),
		mention("ASPIRIN", clinical.TypeMedication, clinical.StringPtr("2024-07-01"), false),
		mention("ECG", clinical.TypeProcedure, nil, false),
		mention("ECG", clinical.TypeProcedure, nil, false),
	})
	assert.Empty(t, tl.Progressions)
	assert.Equal(t, 2, tl.EntityHistory.Len())
}

// =========================================================================
// Conflicts
// =========================================================================

func TestBuild_Conflicts(t *testing.T) {
	tl := NewBuilder().Build([]clinical.EntityMention{
		mention("COUGH", clinical.TypeSymptom, clinical.StringPtr("2024-08-01"), true),
		mention("CHEST_PAIN", clinical.TypeSymptom, clinical.StringPtr("2024-06-01"), false),
		mention("COUGH", clinical.TypeSymptom, clinical.StringPtr("2024-06-01"), false),
		mention("CHEST_PAIN", clinical.TypeSymptom, clinical.StringPtr("2024-07-10"), false),
	})

	require.Len(t, tl.Conflicts, 1)
	c := tl.Conflicts[0]
	assert.Equal(t, "COUGH", c.Entity)
	assert.Equal(t, clinical.IssueNegationConflict, c.Issue)
	require.Len(t, c.Events, 2)
	assert.Equal(t, "2024-06-01", clinical.Deref(c.Events[0].Date))
	assert.False(t, c.Events[0].Negated)
	assert.True(t, c.Events[1].Negated)
	assert.Equal(t, "note.txt", c.Events[1].Source)
}

// =========================================================================
// End to end
// =========================================================================

func TestBuild_FeverScenario(t *testing.T) {
	tl := NewBuilder().Build([]clinical.EntityMention{
		mention("FEVER", clinical.TypeSymptom, clinical.StringPtr("2024-08-01"), false),
		mention("FEVER", clinical.TypeSymptom, clinical.StringPtr("2024-07-10"), true),
	})

	require.Len(t, tl.Progressions, 1)
	p := tl.Progressions[0]
	assert.Equal(t, "FEVER", p.Entity)
	assert.Equal(t, clinical.PatternRecurrent, p.Pattern)
	assert.Equal(t, 2, p.Occurrences)
	assert.Equal(t, []*string{clinical.StringPtr("2024-07-10"), clinical.StringPtr("2024-08-01")}, p.Dates)

	require.Len(t, tl.Conflicts, 1)
	c := tl.Conflicts[0]
	require.Len(t, c.Events, 2)
	assert.Equal(t, "2024-07-10", clinical.Deref(c.Events[0].Date))
	assert.True(t, c.Events[0].Negated)
	assert.Equal(t, "2024-08-01", clinical.Deref(c.Events[1].Date))
	assert.False(t, c.Events[1].Negated)
}

func TestBuild_HistoryKeysFollowTimelineOrder(t *testing.T) {
	tl := NewBuilder().Build([]clinical.EntityMention{
		mention("COUGH", clinical.TypeSymptom, nil, false),
		mention("FEVER", clinical.TypeSymptom, clinical.StringPtr("2024-01-01"), false),
		mention("COUGH", clinical.TypeSymptom, clinical.StringPtr("2024-02-01"), false),
	})
	assert.Equal(t, []string{"FEVER", "COUGH"}, tl.EntityHistory.Keys())

	data, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.Regexp(t, `"entity_history":\{"FEVER":\[.*\],"COUGH":\[.*\]\}`, string(data))
}

func TestBuild_BucketByType(t *testing.T) {
	ms := []clinical.EntityMention{
		mention("ANEMIA", clinical.TypeCondition, clinical.StringPtr("2024-01-01"), false),
		mention("ANEMIA", clinical.TypeCondition, clinical.StringPtr("2024-02-01"), false),
		mention("ANEMIA", clinical.TypeSymptom, clinical.StringPtr("2024-03-01"), true),
	}

	merged := NewBuilder().Build(ms)
	assert.Equal(t, []string{"ANEMIA"}, merged.EntityHistory.Keys())
	require.Len(t, merged.Progressions, 1)
	assert.Equal(t, 3, merged.Progressions[0].Occurrences)
	assert.Len(t, merged.Conflicts, 1)

	bucketed := NewBuilder(WithBucketByType(true)).Build(ms)
	assert.Equal(t, []string{"ANEMIA:condition", "ANEMIA:symptom"}, bucketed.EntityHistory.Keys())
	require.Len(t, bucketed.Progressions, 1)
	assert.Equal(t, "ANEMIA", bucketed.Progressions[0].Entity)
	assert.Equal(t, 2, bucketed.Progressions[0].Occurrences)
	assert.Empty(t, bucketed.Conflicts)

	assert.Equal(t, bucketed.EntityHistory.Keys(),
		NewBuilderFromOptions(Options{BucketByType: true}).Build(ms).EntityHistory.Keys())
}

func TestBuild_Empty(t *testing.T) {
	tl := NewBuilder().Build(nil)
	assert.Empty(t, tl.Timeline)
	assert.NotNil(t, tl.Progressions)
	assert.NotNil(t, tl.Conflicts)
	assert.Equal(t, 0, tl.EntityHistory.Len())
}

//Personal.AI order the ending
