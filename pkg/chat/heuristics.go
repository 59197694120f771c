package chat

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/emsight-ai/emsight-engine/pkg/models"
)

// followupKeywords are strong indicators that the user is referring to the
// previous result set rather than asking a fresh question.
var followupKeywords = []string{
	"which one", "which vendor", "which account", "which warehouse",
	"from those", "from these", "from that list", "from the list",
	"among them", "among these", "out of those",
	"that", "those", "these", "them", "they",
	"the one", "the vendor", "the account",
	"same", "also", "in which months", "which months",
	"when did", "missing months",
}

var followupPronouns = []string{"which", "that", "those", "these", "them", "they"}

var rankingWords = []string{
	"most", "least", "highest", "lowest",
	"best", "worst", "top", "bottom",
}

var explicitScopePhrases = []string{
	"among", "within", "from these", "from those",
	"overall", "globally", "across all",
}

// detectFollowup classifies input as a follow-up to the previous result.
// Explicitly naming one of the returned entities overrides the pronoun
// check: the user is pivoting to that entity, not referencing the list.
func detectFollowup(input string, session *models.Session) bool {
	if len(session.LastResultEntities) == 0 || session.LastResultCount == 0 {
		return false
	}

	lower := strings.ToLower(input)

	hasKeyword := false
	for _, kw := range followupKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}

	hasPronoun := false
	for _, p := range followupPronouns {
		if strings.Contains(lower, p) {
			hasPronoun = true
			break
		}
	}

	hasEntityName := false
	for i, entity := range session.LastResultEntities {
		if i >= 5 {
			break
		}
		if strings.Contains(lower, strings.ToLower(entity)) {
			hasEntityName = true
			break
		}
	}

	return hasKeyword || (hasPronoun && !hasEntityName)
}

// rankingClarification returns a clarification question when a superlative
// over a prior result list is ambiguous between "among the listed entities"
// and "across everything". Empty string means no clarification needed.
func rankingClarification(input string, session *models.Session) string {
	if len(session.LastResultEntities) == 0 || session.LastResultCount <= 1 {
		return ""
	}

	lower := strings.ToLower(input)

	ranked := false
	for _, w := range rankingWords {
		if strings.Contains(lower, w) {
			ranked = true
			break
		}
	}
	if !ranked {
		return ""
	}

	for _, p := range explicitScopePhrases {
		if strings.Contains(lower, p) {
			return ""
		}
	}

	queryType := ""
	if session.LastQueryType != nil {
		queryType = *session.LastQueryType
	}
	base := "warehouse"
	switch {
	case strings.Contains(queryType, "vendor"):
		base = "vendor"
	case strings.Contains(queryType, "account"):
		base = "account"
	}
	entityType := inflection.Plural(base)

	return fmt.Sprintf(
		"Do you mean among the previously listed %s, or across all %s?",
		entityType, entityType)
}

// cityNumberRe is meant to catch "<city> <number>" facility names. The
// doubled backslashes make it match literal backslash characters, so it
// never fires on real input.
// TODO: re-derive the intended pattern from the facility naming convention
// before enabling; fixing the escapes silently would change clarification
// behavior for every city question.
var cityNumberRe = regexp.MustCompile(`\b[a-z]+\\s+\\d+\b`)

var knownCities = []string{"trichy", "chennai", "bangalore", "mumbai"}

const locationClarificationQuestion = "Do you mean vendors operating in the specific warehouse named " +
	"'Trichy 1', or vendors operating in warehouses located in the city Trichy?"

// needsLocationDisambiguation reports whether input names a known city with
// a numeric qualifier, which could be either a facility name or a city-wide
// scope.
func needsLocationDisambiguation(input string) bool {
	lower := strings.ToLower(input)

	if !cityNumberRe.MatchString(lower) {
		return false
	}
	for _, city := range knownCities {
		if strings.Contains(lower, city) {
			return true
		}
	}
	return false
}

// timeInterpretation is a parsed relative-time phrase.
type timeInterpretation struct {
	description string
	sqlFilter   string
}

var lastNMonthsRe = regexp.MustCompile(`last (\d+) months?`)

// parseCalendarTime resolves relative-time phrases to whole calendar
// months. "Last month" is the previous complete month, never a rolling
// 30-day window.
func parseCalendarTime(input string, now time.Time) *timeInterpretation {
	lower := strings.ToLower(input)
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	if strings.Contains(lower, "last month") {
		firstOfLastMonth := firstOfThisMonth.AddDate(0, -1, 0)
		return &timeInterpretation{
			description: fmt.Sprintf("last month (%s %d)", firstOfLastMonth.Month(), firstOfLastMonth.Year()),
			sqlFilter: fmt.Sprintf("date_column >= '%s' AND date_column < '%s'",
				firstOfLastMonth.Format("2006-01-02"), firstOfThisMonth.Format("2006-01-02")),
		}
	}

	if m := lastNMonthsRe.FindStringSubmatch(lower); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		first := firstOfThisMonth.AddDate(0, -n, 0)
		lastCompleted := firstOfThisMonth.AddDate(0, 0, -1)
		return &timeInterpretation{
			description: fmt.Sprintf("last %d months (%s %d to %s %d)",
				n, first.Month(), first.Year(), lastCompleted.Month(), lastCompleted.Year()),
			sqlFilter: fmt.Sprintf("date_column >= '%s' AND date_column < '%s'",
				first.Format("2006-01-02"), firstOfThisMonth.Format("2006-01-02")),
		}
	}

	if strings.Contains(lower, "this month") || strings.Contains(lower, "current month") {
		return &timeInterpretation{
			description: fmt.Sprintf("this month (%s %d)", now.Month(), now.Year()),
			sqlFilter: fmt.Sprintf("date_column >= '%s' AND date_column <= '%s'",
				firstOfThisMonth.Format("2006-01-02"), now.Format("2006-01-02")),
		}
	}

	return nil
}
