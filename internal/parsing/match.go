package parsing

import "regexp"

// a number not glued to a preceding letter, so "EC2" and "S3" do not count
var metricToken = regexp.MustCompile(`(?:^|[^\p{L}\d])[$€£¥]?\d[\d,.]*\s?(?:%|percent\b|[kKmMbB]\b|x\b)?`)

// ContainsMetric reports whether text carries a numeric, percent or currency token
func ContainsMetric(text string) bool {
	return metricToken.MatchString(text)
}

// ContainsPhrase reports whether phrase occurs in text as a whole term, not
// glued to letters or digits. Matching ignores case unless caseSensitive is set.
func ContainsPhrase(text, phrase string, caseSensitive bool) bool {
	if phrase == "" {
		return false
	}
	if !caseSensitive {
		text = foldCase(text)
		phrase = foldCase(phrase)
	}
	return indexWord([]byte(text), []byte(phrase), 0) >= 0
}
