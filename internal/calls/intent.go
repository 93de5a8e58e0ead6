package calls

import "strings"

// Keyword-based intent detection, used when no structured analysis result is
// available (legacy event shapes, free-text transcripts).
//
// First substring match wins. Category order and keyword order are load-bearing:
// e.g. text mentioning both a fire and a police keyword classifies as fire, and
// "accident" resolves to medical before traffic's "car accident" is reached.
var intentCategories = []struct {
	intent   string
	keywords []string
}{
	{IntentFire, []string{"fire", "burning", "smoke", "flames", "burn", "arson", "explosion"}},
	{IntentMedical, []string{"medical", "ambulance", "heart attack", "stroke", "injury", "accident", "bleeding", "unconscious", "emergency medical", "hospital", "doctor", "hurt", "pain", "sick"}},
	{IntentPolice, []string{"police", "crime", "robbery", "theft", "assault", "break in", "burglary", "violence", "domestic", "fight", "weapon", "gun", "knife"}},
	{IntentTraffic, []string{"car accident", "traffic", "collision", "crash", "vehicle", "highway", "road"}},
	{IntentRescue, []string{"rescue", "trapped", "stuck", "water rescue", "mountain rescue", "search and rescue"}},
}

// ClassifyIntent maps free text onto exactly one intent category, or
// IntentUnknown when nothing matches.
func ClassifyIntent(text string) string {
	t := strings.ToLower(text)
	for _, cat := range intentCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(t, kw) {
				return cat.intent
			}
		}
	}
	return IntentUnknown
}
