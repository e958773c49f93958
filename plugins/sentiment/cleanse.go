package sentiment

import (
	"regexp"
	"strings"
)

// noise matches mentions, characters outside letters, digits, blanks and
// apostrophes, and URLs. Alternatives are tried left to right.
var noise = regexp.MustCompile(`(@[A-Za-z0-9]+)|([^0-9A-Za-z \t'])|(\w+://\S+)`)

// Cleanse strips a tweet down to its words. A leading retweet marker up to
// the first colon is dropped, then mentions, links and punctuation other
// than apostrophes. Runs of whitespace collapse to single spaces.
func Cleanse(tweet string) string {
	if strings.HasPrefix(tweet, "RT") {
		if i := strings.IndexByte(tweet, ':'); i >= 0 {
			tweet = tweet[i:]
		}
	}
	return strings.Join(strings.Fields(noise.ReplaceAllString(tweet, " ")), " ")
}
