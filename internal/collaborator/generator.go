// Package collaborator holds HTTP clients for the external services the
// engine hands off to: the test generation service and the grading service.
// Both are consumed at their interface boundary only.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/certilearn/certilearn-backend/internal/model"
)

// GeneratedTest is the payload returned by the generation service for a
// new attempt. Question types may arrive in synonymous spellings; the
// caller normalizes them.
type GeneratedTest struct {
	Questions    []model.Question `json:"questions"`
	TimeLimit    int              `json:"timeLimit"`
	PassingScore float64          `json:"passingScore"`
	TotalMarks   float64          `json:"totalMarks"`
}

// Generator requests fresh test content from the generation service.
type Generator interface {
	GenerateTest(ctx context.Context, courseID string) (*GeneratedTest, error)
}

// HTTPGenerator is the production Generator over the generation service's
// REST surface.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPGenerator creates an HTTPGenerator for the given base URL.
func NewHTTPGenerator(baseURL string, log zerolog.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "generator_client").Logger(),
	}
}

// GenerateTest requests a generated test for a course.
func (g *HTTPGenerator) GenerateTest(ctx context.Context, courseID string) (*GeneratedTest, error) {
	body, err := json.Marshal(map[string]string{"course_id": courseID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate-test", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var test GeneratedTest
	if err := json.NewDecoder(resp.Body).Decode(&test); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	if len(test.Questions) == 0 {
		return nil, fmt.Errorf("generator returned no questions")
	}

	return &test, nil
}
