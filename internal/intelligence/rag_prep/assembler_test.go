package rag_prep

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

func newTestAssembler(t *testing.T, opts Options) *Assembler {
	t.Helper()
	a, err := NewAssembler(opts, WithIDGenerator(func() string { return "0a1b2c3d4e5f" }))
	require.NoError(t, err)
	return a
}

func m(normalized string, typ clinical.EntityType, ctx, source string, date *string, section string) clinical.EntityMention {
	return clinical.EntityMention{
		Entity:     strings.ToLower(normalized),
		Normalized: normalized,
		Type:       typ,
		Context:    ctx,
		Source:     source,
		Date:       date,
		Section:    section,
	}
}

var d0814 = clinical.StringPtr("2024-08-14")

func TestAssemble_GroupingKey(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, "Fever since two days", "a.txt", d0814, "clinical"),
		m("ASPIRIN", clinical.TypeMedication, "Started aspirin", "a.txt", d0814, "clinical"),
		m("FEVER", clinical.TypeSymptom, "Fever since two days", "b.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "Dry cough", "a.txt", nil, "clinical"),
		m("COUGH", clinical.TypeSymptom, "Dry cough", "a.txt", d0814, ""),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"ASPIRIN", "FEVER"}, chunks[0].Entities)
	assert.Equal(t, []clinical.EntityType{clinical.TypeMedication, clinical.TypeSymptom}, chunks[0].EntityTypes)
	assert.Equal(t, "b.txt", chunks[1].Source)
	assert.Nil(t, chunks[2].Date)
	assert.Equal(t, "a.txt_None_clinical_0a1b2c3d", chunks[2].ChunkID)
	assert.Equal(t, clinical.SectionUnspecified, chunks[3].Section)
	assert.Equal(t, "a.txt_2024-08-14_unspecified_0a1b2c3d", chunks[3].ChunkID)
	for _, c := range chunks {
		assert.Equal(t, clinical.DocTypeClinicalNote, c.Metadata.DocType)
		assert.NotNil(t, c.Metadata.NegatedEntities)
		assert.NotNil(t, c.Metadata.Labs)
	}
}

func TestAssemble_DedupKeepsFirstOriginal(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("CHEST_PAIN", clinical.TypeSymptom, "  Chest pain and   shortness of breath ", "a.txt", d0814, "clinical"),
		m("SHORTNESS_OF_BREATH", clinical.TypeSymptom, "chest pain and shortness of breath", "a.txt", d0814, "clinical"),
		m("FEVER", clinical.TypeSymptom, "   ", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Chest pain and   shortness of breath", chunks[0].Text)
	assert.Equal(t, []string{"CHEST_PAIN", "FEVER", "SHORTNESS_OF_BREATH"}, chunks[0].Entities)
}

func TestAssemble_DropsGroupWithoutContext(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, "", "a.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "Cough at night", "b.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, "b.txt", chunks[0].Source)
	assert.NotEmpty(t, chunks[0].Text)
}

func TestAssemble_OrdersByOffsetInFirstContext(t *testing.T) {
	anchor := "Chest pain at rest. Hemoglobin 9.8 g/dL. Started aspirin."
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("CHEST_PAIN", clinical.TypeSymptom, anchor, "a.txt", d0814, "clinical"),
		m("ASPIRIN", clinical.TypeMedication, "Started aspirin.", "a.txt", d0814, "clinical"),
		m("HEMOGLOBIN", clinical.TypeLab, "Hemoglobin 9.8 g/dL.", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, anchor+"\nHemoglobin 9.8 g/dL.\nStarted aspirin.", chunks[0].Text)
}

func TestAssemble_MissingContextsLeadInEncounterOrder(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, "Patient has fever today", "a.txt", d0814, "clinical"),
		m("ASPIRIN", clinical.TypeMedication, "Treated with aspirin", "a.txt", d0814, "clinical"),
		m("HEMOGLOBIN", clinical.TypeLab, "Hemoglobin: 10.2 g/dL", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Treated with aspirin\nHemoglobin: 10.2 g/dL\nPatient has fever today", chunks[0].Text)
}

func TestAssemble_MixedFoundAndMissingContexts(t *testing.T) {
	anchor := "Fever and cough since Monday"
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble([]clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, anchor, "a.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "cough since Monday", "a.txt", d0814, "clinical"),
		m("ASPIRIN", clinical.TypeMedication, "Started aspirin", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Started aspirin\n"+anchor+"\ncough since Monday", chunks[0].Text)
}

func TestAssemble_CategoryFallback(t *testing.T) {
	opts := DefaultOptions()
	opts.CategoryFallback = true
	a := newTestAssembler(t, opts)
	chunks := a.Assemble([]clinical.EntityMention{
		m("ASPIRIN", clinical.TypeMedication, "Started aspirin", "a.txt", d0814, "clinical"),
		m("ECG", clinical.TypeProcedure, "ECG normal", "a.txt", d0814, "clinical"),
		m("HEMOGLOBIN", clinical.TypeLab, "Hemoglobin 9.8", "a.txt", d0814, "clinical"),
		m("DIABETES", clinical.TypeCondition, "Known diabetes", "a.txt", d0814, "clinical"),
		m("FEVER", clinical.TypeSymptom, "High fever", "a.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "Dry cough", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Join([]string{
		"High fever", "Dry cough", "Known diabetes", "Hemoglobin 9.8", "ECG normal", "Started aspirin",
	}, "\n"), chunks[0].Text)

	anchor := "Chest pain at rest. Started aspirin."
	chunks = a.Assemble([]clinical.EntityMention{
		m("CHEST_PAIN", clinical.TypeSymptom, anchor, "a.txt", d0814, "clinical"),
		m("ASPIRIN", clinical.TypeMedication, "Started aspirin.", "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)
	require.Len(t, chunks, 1)
	assert.Equal(t, anchor+"\nStarted aspirin.", chunks[0].Text)
}

func TestAssemble_TruncatesToMaxChars(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	long := strings.Repeat("é", 1500)
	chunks := a.Assemble([]clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, long+" fever", "a.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "cough "+long, "a.txt", d0814, "clinical"),
	}, clinical.DocTypeClinicalNote)

	require.Len(t, chunks, 1)
	assert.Equal(t, DefaultMaxChars, utf8.RuneCountInString(chunks[0].Text))
	assert.True(t, utf8.ValidString(chunks[0].Text))

	small := newTestAssembler(t, Options{MaxChars: 5})
	out := small.Assemble([]clinical.EntityMention{m("FEVER", clinical.TypeSymptom, "fever", "a.txt", nil, "")}, "")
	assert.Equal(t, "fever", out[0].Text)
}

func TestAssemble_Metadata(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	hb := m("HEMOGLOBIN", clinical.TypeLab, "Hemoglobin 9.8 g/dL", "lab.txt", d0814, "lab_results")
	hb.Value, hb.Unit = clinical.StringPtr("9.8"), clinical.StringPtr("g/dL")
	hb2 := m("HEMOGLOBIN", clinical.TypeLab, "hemoglobin 9.8 g/dl", "lab.txt", d0814, "lab_results")
	hb2.Value = clinical.StringPtr("9.8")
	fever := m("FEVER", clinical.TypeSymptom, "no fever", "lab.txt", d0814, "lab_results")
	fever.Negated = true

	chunks := a.Assemble([]clinical.EntityMention{hb, fever, hb2}, clinical.DocTypeLabReport)
	require.Len(t, chunks, 1)
	md := chunks[0].Metadata
	assert.Equal(t, clinical.DocTypeLabReport, md.DocType)
	assert.Equal(t, []string{"FEVER"}, md.NegatedEntities)
	require.Len(t, md.Labs, 2)
	assert.Equal(t, "HEMOGLOBIN", md.Labs[0].Lab)
	assert.Equal(t, "g/dL", clinical.Deref(md.Labs[0].Unit))
	assert.Nil(t, md.Labs[1].Unit)
	assert.Equal(t, "hemoglobin 9.8 g/dl", md.Labs[1].Context)
}

func TestAssemble_ChunkIDModes(t *testing.T) {
	mentions := []clinical.EntityMention{
		m("FEVER", clinical.TypeSymptom, "fever", "a.txt", d0814, "clinical"),
		m("COUGH", clinical.TypeSymptom, "cough", "a.txt", d0814, "clinical"),
	}

	random, err := NewAssembler(DefaultOptions())
	require.NoError(t, err)
	first := random.Assemble(mentions, "")[0].ChunkID
	second := random.Assemble(mentions, "")[0].ChunkID
	assert.Regexp(t, `^a\.txt_2024-08-14_clinical_[0-9a-f]{8}$`, first)
	assert.NotEqual(t, first, second)

	content, err := NewAssembler(Options{ChunkIDMode: ChunkIDContent})
	require.NoError(t, err)
	c1 := content.Assemble(mentions, "")[0].ChunkID
	c2 := content.Assemble([]clinical.EntityMention{mentions[1], mentions[0]}, "")[0].ChunkID
	assert.Regexp(t, `^a\.txt_2024-08-14_clinical_[0-9a-f]{8}$`, c1)
	assert.Equal(t, c1, c2)

	c3 := content.Assemble(mentions[:1], "")[0].ChunkID
	assert.NotEqual(t, c1, c3)
}

func TestNewAssembler_Validation(t *testing.T) {
	_, err := NewAssembler(Options{ChunkIDMode: "sequential"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeChunkIDModeInvalid))

	_, err = NewAssembler(Options{MaxChars: -1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeChunkAssemblyFailed))

	a, err := NewAssembler(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), a.opts)
}

func TestAssembleBySource(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.AssembleBySource([]clinical.EntityMention{
		m("HEMOGLOBIN", clinical.TypeLab, "Hemoglobin 9.8", "lab.txt", d0814, "lab_results"),
		m("FEVER", clinical.TypeSymptom, "fever", "note.txt", d0814, "clinical"),
	}, map[string]string{"lab.txt": clinical.DocTypeLabReport})

	require.Len(t, chunks, 2)
	assert.Equal(t, clinical.DocTypeLabReport, chunks[0].Metadata.DocType)
	assert.Equal(t, clinical.DocTypeClinicalNote, chunks[1].Metadata.DocType)
}

func TestAssemble_Empty(t *testing.T) {
	a := newTestAssembler(t, DefaultOptions())
	chunks := a.Assemble(nil, clinical.DocTypeClinicalNote)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

//Personal.AI order the ending
