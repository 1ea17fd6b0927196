package utils

import "regexp"

// CompileRegexPatterns compiles the config's pattern strings, skipping empty
// entries. An invalid pattern fails the whole batch with a config validation
// error naming it.
func CompileRegexPatterns(patterns []string) ([]*regexp.Regexp, error) {
	var compiled []*regexp.Regexp
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "invalid regex pattern #%d (%q)", i+1, pattern)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
