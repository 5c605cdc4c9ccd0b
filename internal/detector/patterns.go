package detector

import (
	"regexp"

	"screensage/internal/types"
)

// patternMatcher accumulates confidence for one problem family. Keyword
// hits are worth keywordWeight per paragraph, regex hits regexWeight per
// matching paragraph.
type patternMatcher struct {
	platform types.Platform
	keywords []string
	patterns []*regexp.Regexp
}

const (
	keywordWeight = 0.1
	regexWeight   = 0.2

	errorKeywordWeight = 0.2
	errorRegexWeight   = 0.3

	testTokenWeight = 0.2
)

var errorMatcher = struct {
	keywords []string
	patterns []*regexp.Regexp
}{
	keywords: []string{
		"error",
		"exception",
		"failed",
		"compilation error",
		"runtime error",
		"syntax error",
	},
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\w*(?:error|exception)):\s*(.+)`),
		regexp.MustCompile(`(?i)line\s*(\d+).*error`),
		regexp.MustCompile(`(?i)traceback.*most recent call`),
	},
}

var platformMatchers = []patternMatcher{
	{
		platform: types.PlatformHackerRank,
		keywords: []string{
			"hackerrank",
			"problem statement",
			"sample input",
			"sample output",
			"constraints",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)sample\s+(input|output)\s*\d*`),
			regexp.MustCompile(`(?i)constraint[s]?:`),
			regexp.MustCompile(`(?i)input\s*format:`),
		},
	},
	{
		platform: types.PlatformLeetCode,
		keywords: []string{
			"leetcode",
			"example",
			"input:",
			"output:",
			"explanation:",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)example\s*\d*:`),
			regexp.MustCompile(`(?i)input:\s*(.+)`),
			regexp.MustCompile(`(?i)output:\s*(.+)`),
		},
	},
}

var testFailureTokens = []string{
	"test failed",
	"assertion error",
	"expected:",
	"actual:",
	"tests passed:",
	"tests failed:",
}

var (
	tracebackPattern  = regexp.MustCompile(`(?i)traceback|runtime error|panic:`)
	errorLinePattern  = regexp.MustCompile(`(?i)line\s*(\d+)`)
	inputAnchor       = regexp.MustCompile(`(?i)(?:sample\s+)?input\s*:\s*(.*)`)
	outputAnchor      = regexp.MustCompile(`(?i)(?:sample\s+|expected\s+)?output\s*:\s*(.*)`)
	starterAnchors    = []string{"class Solution", "def solution", "function solution"}
	lineNumberPattern = regexp.MustCompile(`^\s*(\d+)\s*[|:]`)
)
