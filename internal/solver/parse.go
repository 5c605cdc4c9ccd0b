package solver

import (
	"regexp"
	"strings"
)

var (
	solutionBlock    = regexp.MustCompile("```solution\\n([\\s\\S]*?)\\n```")
	explanationBlock = regexp.MustCompile("```explanation\\n([\\s\\S]*?)\\n```")
	timeBlock        = regexp.MustCompile("```time_complexity\\n([\\s\\S]*?)\\n```")
	spaceBlock       = regexp.MustCompile("```space_complexity\\n([\\s\\S]*?)\\n```")
	anyCodeBlock     = regexp.MustCompile("```[\\w+-]*\\n([\\s\\S]*?)\\n```")
)

// parsedSolution holds the labeled sections extracted from an LLM
// response.
type parsedSolution struct {
	Code            string
	Explanation     string
	TimeComplexity  string
	SpaceComplexity string
}

// parseResponse extracts the labeled blocks. A missing solution block
// falls back to the first fenced code block, then to the raw response.
func parseResponse(response string) parsedSolution {
	var out parsedSolution

	if m := solutionBlock.FindStringSubmatch(response); m != nil {
		out.Code = strings.TrimSpace(m[1])
	} else if m := anyCodeBlock.FindStringSubmatch(response); m != nil {
		out.Code = strings.TrimSpace(m[1])
	} else {
		out.Code = strings.TrimSpace(response)
	}

	if m := explanationBlock.FindStringSubmatch(response); m != nil {
		out.Explanation = strings.TrimSpace(m[1])
	}
	if m := timeBlock.FindStringSubmatch(response); m != nil {
		out.TimeComplexity = strings.TrimSpace(m[1])
	}
	if m := spaceBlock.FindStringSubmatch(response); m != nil {
		out.SpaceComplexity = strings.TrimSpace(m[1])
	}
	return out
}

// confidenceScore derives structural-completeness confidence: base 0.5 for
// non-empty code, +0.1 for substantial code, +0.15 for a real explanation,
// +0.125 each for the complexity fields. Clamped to [0,1].
func confidenceScore(p parsedSolution) float64 {
	var score float64
	if p.Code != "" {
		score += 0.5
	}
	if len(p.Code) > 50 {
		score += 0.1
	}
	if len(p.Explanation) > 50 {
		score += 0.15
	}
	if p.TimeComplexity != "" {
		score += 0.125
	}
	if p.SpaceComplexity != "" {
		score += 0.125
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
