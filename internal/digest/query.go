package digest

import (
	"fmt"
	"strings"

	"github.com/coach0/coach/internal/progress"
)

// maxQueries caps the retrieval fan-out per run.
const maxQueries = 3

// FormulateQueries derives retrieval queries from the learner's progress,
// one per current topic so retrieval is not narrowed to a single topic.
// The mapping is deterministic: the same progress always yields the same
// queries, so runs are reproducible against a fixed corpus.
func FormulateQueries(p progress.UserProgress) []string {
	goals := strings.Join(p.LearningGoals, "; ")

	var queries []string
	for _, topic := range p.CurrentTopics {
		if len(queries) == maxQueries {
			break
		}
		if goals != "" {
			queries = append(queries, fmt.Sprintf("practical guidance on %s to %s", topic, goals))
		} else {
			queries = append(queries, fmt.Sprintf("week %d practical guidance on %s", p.CurrentWeek, topic))
		}
	}

	if len(queries) == 0 {
		if goals != "" {
			return []string{fmt.Sprintf("how to %s", goals)}
		}
		return []string{fmt.Sprintf("week %d software engineering essentials", p.CurrentWeek)}
	}
	return queries
}
