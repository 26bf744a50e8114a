package pe

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// SelectResources returns the resources whose path (e.g.
// "RT_ICON/1/1033") is included by rules, in tree order. Rules are
// evaluated in order and the last match wins; a path no rule matches
// is excluded. With no rules every resource is selected.
func (self *ResourceManager) SelectResources(rules []pathrules.Rule) ([]*Resource, error) {
	result := []*Resource{}

	if len(rules) == 0 {
		for resource := range self.Resources() {
			result = append(result, resource)
		}
		return result, nil
	}

	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		return nil, fmt.Errorf("compile resource rules: %w", err)
	}

	for resource := range self.Resources() {
		if matcher.Included(resource.PathString(), false) {
			result = append(result, resource)
		}
	}
	return result, nil
}

// ParseResourceRules turns command line patterns into rules. A leading
// "!" makes the pattern an exclusion.
func ParseResourceRules(patterns []string) []pathrules.Rule {
	result := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		action := pathrules.ActionInclude
		if strings.HasPrefix(pattern, "!") {
			action = pathrules.ActionExclude
			pattern = pattern[1:]
		}

		result = append(result, pathrules.Rule{
			Action:  action,
			Pattern: pattern,
		})
	}
	return result
}
