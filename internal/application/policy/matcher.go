package policy

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrMalformedPattern wraps a rule pattern that does not compile
var ErrMalformedPattern = errors.New("malformed pattern")

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// PatternMatcher evaluates rule patterns case-insensitively. Compiled
// patterns, including failures, are cached by source text.
type PatternMatcher struct {
	mu    sync.RWMutex
	cache map[string]compiledPattern
}

// NewPatternMatcher creates an empty matcher
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{cache: make(map[string]compiledPattern)}
}

// Match reports whether pattern matches anywhere in content. A pattern that
// does not compile returns false and an error wrapping ErrMalformedPattern.
func (m *PatternMatcher) Match(pattern, content string) (bool, error) {
	c := m.compile(pattern)
	if c.err != nil {
		return false, c.err
	}
	return c.re.MatchString(content), nil
}

// Validate compiles pattern without matching
func (m *PatternMatcher) Validate(pattern string) error {
	return m.compile(pattern).err
}

func (m *PatternMatcher) compile(pattern string) compiledPattern {
	m.mu.RLock()
	c, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return c
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		c = compiledPattern{err: fmt.Errorf("%w: %v", ErrMalformedPattern, err)}
	} else {
		c = compiledPattern{re: re}
	}

	m.mu.Lock()
	m.cache[pattern] = c
	m.mu.Unlock()
	return c
}
