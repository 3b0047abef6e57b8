package model

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// QuestionType is the closed set of question kinds the engine understands.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeTrueFalse   QuestionType = "true_false"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeCoding      QuestionType = "coding"
	QuestionTypeSituational QuestionType = "situational"
)

// trueFalseOptions is the canonical option pair for true/false questions.
// Whatever the generator sent, a true_false question always renders these two.
var trueFalseOptions = []string{"True", "False"}

// Question is a single item on a certification test. Immutable once the
// attempt is loaded; the engine never mutates questions.
type Question struct {
	ID      uuid.UUID    `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"question"`
	Options []string     `json:"options,omitempty"`
	Marks   float64      `json:"marks"`
}

// NormalizeQuestionType folds the synonymous spellings the generator emits
// ("true/false", "short answer", "multiple choice", "code", "scenario", ...)
// into the closed QuestionType set. Unknown inputs are returned lowercased
// and untrimmed of meaning; NormalizeQuestion decides the fallback.
func NormalizeQuestionType(raw string) QuestionType {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	switch normalized {
	case "true/false", "true_false", "true false", "true-false":
		return QuestionTypeTrueFalse
	case "short answer", "short_answer", "short-answer":
		return QuestionTypeShortAnswer
	case "multiple choice", "multiple_choice", "mcq":
		return QuestionTypeMCQ
	case "code", "coding", "programming":
		return QuestionTypeCoding
	case "situation", "situational", "scenario":
		return QuestionTypeSituational
	}
	return QuestionType(normalized)
}

// IsKnownQuestionType reports whether t belongs to the closed set.
func IsKnownQuestionType(t QuestionType) bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeTrueFalse, QuestionTypeShortAnswer,
		QuestionTypeCoding, QuestionTypeSituational:
		return true
	}
	return false
}

// NormalizeQuestion canonicalizes a raw question in place:
//   - the type tag is folded into the closed set;
//   - an unknown type degrades to mcq when options exist, short_answer
//     otherwise, so one malformed item never fails the whole session;
//   - true_false questions always carry exactly the canonical True/False
//     option pair, regardless of any options array in the raw input;
//   - a missing ID is back-filled deterministically from the attempt ID and
//     the question's position, so repeated loads within a session are stable.
func NormalizeQuestion(q *Question, attemptID uuid.UUID, index int) {
	q.Type = NormalizeQuestionType(string(q.Type))

	if !IsKnownQuestionType(q.Type) {
		if len(q.Options) > 0 {
			q.Type = QuestionTypeMCQ
		} else {
			q.Type = QuestionTypeShortAnswer
		}
	}

	if q.Type == QuestionTypeTrueFalse {
		q.Options = append([]string(nil), trueFalseOptions...)
	}

	if q.ID == uuid.Nil {
		q.ID = DeriveQuestionID(attemptID, index)
	}
}

// DeriveQuestionID produces a stable, position-derived identifier for a
// question that arrived without one.
func DeriveQuestionID(attemptID uuid.UUID, index int) uuid.UUID {
	name := []byte("question:" + attemptID.String() + ":" + strconv.Itoa(index))
	return uuid.NewSHA1(attemptID, name)
}
