package classifier

import "strings"

// keywordTopics maps topic labels to trigger words for the offline fallback.
// The table is ordered so that repeated runs label the same content the same
// way. Matching is case-insensitive and purely lexical.
var keywordTopics = []struct {
	topic    string
	keywords []string
}{
	{"hobbies", []string{
		"hobby", "hiking", "hike", "reading", "game", "gaming", "music",
		"guitar", "piano", "photography", "painting", "fishing", "climbing",
		"running", "cycling", "camping", "garden", "knitting", "chess",
	}},
	{"work", []string{
		"work", "job", "office", "meeting", "project", "deadline", "boss",
		"colleague", "career", "company", "client",
	}},
	{"family", []string{
		"family", "mother", "father", "mom", "dad", "sister", "brother",
		"son", "daughter", "wife", "husband", "grandma", "grandpa", "cousin",
	}},
	{"health", []string{
		"health", "doctor", "allerg", "medicine", "medication", "sleep",
		"exercise", "diet", "hospital", "therapy", "workout", "injur",
	}},
	{"food", []string{
		"food", "eat", "coffee", "tea", "cook", "restaurant", "breakfast",
		"lunch", "dinner", "snack", "drink", "cuisine", "spicy",
		"vegetarian", "vegan", "dessert",
	}},
	{"travel", []string{
		"travel", "trip", "flight", "vacation", "abroad", "hotel", "tour",
		"passport",
	}},
	{"preferences", []string{
		"prefer", "favorite", "favourite", "like", "love", "hate",
		"dislike", "enjoy",
	}},
	{"schedule", []string{
		"schedule", "appointment", "monday", "tuesday", "wednesday",
		"thursday", "friday", "saturday", "sunday", "weekend", "tomorrow",
		"calendar", "every morning", "every evening", "every day",
	}},
	{"finance", []string{
		"money", "budget", "invest", "saving", "salary", "rent", "bank",
		"loan", "mortgage",
	}},
	{"education", []string{
		"study", "learn", "school", "university", "course", "class",
		"degree", "exam", "lecture",
	}},
}

// classifyByKeywords scans the content for trigger words. Table order decides
// label order.
func classifyByKeywords(content string) []string {
	lower := strings.ToLower(content)

	var topics []string
	for _, entry := range keywordTopics {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, entry.topic)
				break
			}
		}
		if len(topics) >= maxTopics {
			break
		}
	}

	if len(topics) == 0 {
		return []string{FallbackTopic}
	}

	return topics
}

// ClassifyByKeywordsForTest is a test helper that exposes classifyByKeywords
func ClassifyByKeywordsForTest(content string) []string {
	return classifyByKeywords(content)
}
