package responder

import (
	"context"
	"fmt"
	"time"
)

// DefaultSimulatorDelay matches the pause of the original demo UI
const DefaultSimulatorDelay = 2 * time.Second

// Simulator answers every question with a canned echo after a fixed delay.
// It stands in for the document query service.
type Simulator struct {
	Delay time.Duration
}

// NewSimulator creates a simulator. A negative delay falls back to the default.
func NewSimulator(delay time.Duration) *Simulator {
	if delay < 0 {
		delay = DefaultSimulatorDelay
	}
	return &Simulator{Delay: delay}
}

func (s *Simulator) GenerateReply(ctx context.Context, req Request) (string, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	return SimulatedReply(req.Text), nil
}

// SimulatedReply is the canned answer for text
func SimulatedReply(text string) string {
	return fmt.Sprintf("I understand your question about %s. This is a simulated response from the RAG-based chatbot system. "+
		"In a real implementation, this would query your document database and provide contextual answers based on your data.", text)
}
