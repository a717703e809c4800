package coach

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are an elite endurance sports coach. Analyze my last %d days.

TRAINING LOG:
%s

HEALTH/RECOVERY LOG:
%s

Task:
1. 'summary': 2 sentences on volume/intensity vs recovery.
2. 'score': Choose exactly one: 'Good', 'Moderate', or 'Poor'.
3. 'action': One specific, actionable tip for next week (e.g., "Take Tuesday off," "Increase long run by 2km").

Output a single JSON object with exactly the keys "summary", "score" and "action".`

// BuildPrompt renders the coaching request for the gathered log lines.
func BuildPrompt(days int, activity, health []string) string {
	return fmt.Sprintf(promptTemplate, days, strings.Join(activity, "\n"), strings.Join(health, "\n"))
}
