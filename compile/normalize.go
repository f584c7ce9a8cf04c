package compile

import (
	"regexp"
	"strings"
)

var (
	namespacePrefix = regexp.MustCompile(`^(x|data)[:_-]`)
	separators      = strings.NewReplacer("-", "_", ":", "_")
	multiSuffix     = regexp.MustCompile(`_(start|end)$`)
)

// Normalize maps a tag or attribute name to the registered directive name:
// lower case, without a leading x or data namespace, separators replaced by
// underscores.
//
//	Normalize("data-my-directive") // my_directive
//	Normalize("x:my-directive")    // my_directive
func Normalize(name string) string {
	lower := strings.ToLower(name)
	lower = namespacePrefix.ReplaceAllString(lower, "")
	return separators.Replace(lower)
}

// groupStart returns the directive name of an attribute opening a
// multi-element group: my_widget for my_widget_start. Names without a
// separated start suffix, like start or mystart, are not openers.
func groupStart(normalized string) (string, bool) {
	loc := multiSuffix.FindStringSubmatchIndex(normalized)
	if loc == nil || loc[0] == 0 || normalized[loc[2]:loc[3]] != "start" {
		return "", false
	}
	return normalized[:loc[0]], true
}
