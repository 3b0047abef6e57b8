package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// GradingClient delivers a submitted attempt to the grading service. The
// engine never reads a score from this call: grading is asynchronous and
// the learner polls a processing view elsewhere.
type GradingClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewGradingClient creates a GradingClient for the given base URL.
func NewGradingClient(baseURL string, log zerolog.Logger) *GradingClient {
	return &GradingClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "grading_client").Logger(),
	}
}

// SubmitTest posts the positional answers sequence of one attempt. Answers
// are aligned index-for-index with the attempt's question order; unanswered
// slots are null, never omitted.
func (g *GradingClient) SubmitTest(ctx context.Context, courseID, attemptID string, answers []*string) error {
	body, err := json.Marshal(map[string]interface{}{
		"course_id":  courseID,
		"attempt_id": attemptID,
		"answers":    answers,
	})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/submit-test", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call grading service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grading service returned status %d", resp.StatusCode)
	}
	return nil
}
