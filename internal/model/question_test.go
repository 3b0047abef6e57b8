package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestionTypeFoldsSynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want QuestionType
	}{
		{"mcq", QuestionTypeMCQ},
		{"Multiple Choice", QuestionTypeMCQ},
		{"multiple_choice", QuestionTypeMCQ},
		{"true/false", QuestionTypeTrueFalse},
		{"True False", QuestionTypeTrueFalse},
		{"true-false", QuestionTypeTrueFalse},
		{"Short Answer", QuestionTypeShortAnswer},
		{"short-answer", QuestionTypeShortAnswer},
		{"code", QuestionTypeCoding},
		{"Programming", QuestionTypeCoding},
		{"scenario", QuestionTypeSituational},
		{"  situational  ", QuestionTypeSituational},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuestionType(tt.raw))
		})
	}
}

func TestNormalizeQuestionUnknownTypeFallback(t *testing.T) {
	attemptID := uuid.New()

	withOptions := Question{Type: "matching", Options: []string{"1", "2"}}
	NormalizeQuestion(&withOptions, attemptID, 0)
	assert.Equal(t, QuestionTypeMCQ, withOptions.Type)

	withoutOptions := Question{Type: "essay-ish"}
	NormalizeQuestion(&withoutOptions, attemptID, 1)
	assert.Equal(t, QuestionTypeShortAnswer, withoutOptions.Type)
}

func TestNormalizeQuestionTrueFalseForcesCanonicalOptions(t *testing.T) {
	attemptID := uuid.New()

	tests := []struct {
		name    string
		options []string
	}{
		{"no options", nil},
		{"lowercase options", []string{"true", "false"}},
		{"extra options", []string{"Yes", "No", "Maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{Type: "true/false", Options: tt.options}
			NormalizeQuestion(&q, attemptID, 0)
			assert.Equal(t, QuestionTypeTrueFalse, q.Type)
			assert.Equal(t, []string{"True", "False"}, q.Options)
		})
	}
}

func TestNormalizeQuestionBackfillsStableID(t *testing.T) {
	attemptID := uuid.New()

	a := Question{Type: "mcq", Options: []string{"x"}}
	b := Question{Type: "mcq", Options: []string{"x"}}
	NormalizeQuestion(&a, attemptID, 3)
	NormalizeQuestion(&b, attemptID, 3)

	require.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, a.ID, b.ID, "same attempt and position must derive the same ID")

	other := Question{Type: "mcq", Options: []string{"x"}}
	NormalizeQuestion(&other, attemptID, 4)
	assert.NotEqual(t, a.ID, other.ID, "different positions must derive different IDs")
}

func TestNormalizeQuestionKeepsExplicitID(t *testing.T) {
	explicit := uuid.New()
	q := Question{ID: explicit, Type: "mcq", Options: []string{"x"}}
	NormalizeQuestion(&q, uuid.New(), 0)
	assert.Equal(t, explicit, q.ID)
}

func TestAttemptNormalizeQuestionsIsIdempotent(t *testing.T) {
	attempt := &Attempt{
		ID: uuid.New(),
		Questions: []Question{
			{Type: "true/false"},
			{Type: "Multiple Choice", Options: []string{"a", "b"}},
		},
	}

	attempt.NormalizeQuestions()
	first := make([]Question, len(attempt.Questions))
	copy(first, attempt.Questions)

	attempt.NormalizeQuestions()
	assert.Equal(t, first, attempt.Questions)
}
