package enrichment

import "regexp"

// A hashtag is '#' followed by one or more word characters. Letters include
// CJK and kana so Japanese tags are matched whole.
var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{M}\p{N}_]+)`)

// ExtractHashtags returns the tag words of text without the '#', in order of
// appearance. Repeated tags are kept.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}
