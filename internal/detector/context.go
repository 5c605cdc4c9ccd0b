package detector

import (
	"regexp"
	"strconv"
	"strings"

	"screensage/internal/types"
)

var codeIndicators = []string{
	"function", "def", "class", "import", "const", "let", "var",
	"public", "private", "return", "if", "else", "for", "while",
	"{", "}", "(", ")", ";", "=>", "->", "::",
}

// looksLikeCode reports whether at least two distinct code indicators
// appear in the text.
func looksLikeCode(text string) bool {
	count := 0
	for _, indicator := range codeIndicators {
		if strings.Contains(text, indicator) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

var (
	functionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`def\s+(\w+)\s*\(`),
		regexp.MustCompile(`function\s+(\w+)\s*\(`),
		regexp.MustCompile(`fn\s+(\w+)\s*\(`),
		regexp.MustCompile(`func\s+(\w+)\s*\(`),
		regexp.MustCompile(`public\s+\w+\s+(\w+)\s*\(`),
	}
	classPatterns = []*regexp.Regexp{
		regexp.MustCompile(`public\s+class\s+(\w+)`),
		regexp.MustCompile(`class\s+(\w+)`),
		regexp.MustCompile(`struct\s+(\w+)`),
	}
)

// extractCodeContext concatenates paragraphs that look like code and pulls
// out imports, the focused function, class context, and line numbers.
func extractCodeContext(ocr *types.OcrResult) types.CodeContext {
	var code strings.Builder
	var imports []string

	for _, para := range ocr.Paragraphs {
		if para.SemanticType != types.TextCodeSnippet && !looksLikeCode(para.Text) {
			continue
		}
		code.WriteString(para.Text)
		code.WriteString("\n")

		for _, line := range strings.Split(para.Text, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "import ") ||
				strings.HasPrefix(trimmed, "from ") ||
				strings.HasPrefix(trimmed, "#include") ||
				strings.HasPrefix(trimmed, "require(") ||
				strings.HasPrefix(trimmed, "use ") {
				imports = append(imports, trimmed)
			}
		}
	}

	visible := strings.TrimSpace(code.String())
	start, end := extractLineNumbers(visible)

	return types.CodeContext{
		VisibleCode:     visible,
		FocusedFunction: firstCapture(functionPatterns, visible),
		Imports:         imports,
		ClassContext:    firstCapture(classPatterns, visible),
		LineStart:       start,
		LineEnd:         end,
	}
}

func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractLineNumbers finds gutter-style line numbers ("12 | code" or
// "12: code") and returns the observed range.
func extractLineNumbers(text string) (int, int) {
	minLine, maxLine := 0, 0
	for _, line := range strings.Split(text, "\n") {
		m := lineNumberPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if minLine == 0 || n < minLine {
			minLine = n
		}
		if n > maxLine {
			maxLine = n
		}
	}
	return minLine, maxLine
}

// detectLanguage applies prioritized substring rules to the visible code.
func detectLanguage(code string) types.Language {
	switch {
	case strings.Contains(code, "def ") && (strings.Contains(code, "import") || strings.Contains(code, "self")):
		return types.LangPython
	case strings.Contains(code, "fn ") && strings.Contains(code, "let mut"):
		return types.LangRust
	case strings.Contains(code, "function") || strings.Contains(code, "const ") || strings.Contains(code, "let "):
		return types.LangJavaScript
	case strings.Contains(code, "public class") || strings.Contains(code, "import java"):
		return types.LangJava
	case strings.Contains(code, "#include") && strings.Contains(code, "std::"):
		return types.LangCpp
	case strings.Contains(code, "package main") || strings.Contains(code, "func "):
		return types.LangGo
	case strings.Contains(code, "def "):
		return types.LangPython
	default:
		return types.LangUnknown
	}
}

// detectPlatform maps vision-detected applications onto a coding platform.
func detectPlatform(analysis *types.ScreenAnalysis) types.Platform {
	if analysis == nil {
		return types.PlatformUnknown
	}
	for _, app := range analysis.DetectedApps {
		name := strings.ToLower(app.Name)
		switch {
		case strings.Contains(name, "hackerrank"):
			return types.PlatformHackerRank
		case strings.Contains(name, "leetcode"):
			return types.PlatformLeetCode
		case strings.Contains(name, "codeforces"):
			return types.PlatformCodeforces
		case strings.Contains(name, "jupyter"):
			return types.PlatformJupyter
		case app.Type == types.AppIDE:
			return types.PlatformLocalIDE
		case app.Type == types.AppTerminal:
			return types.PlatformTerminal
		}
	}
	return types.PlatformUnknown
}

// problemRegion is the union bounding box of every paragraph.
func problemRegion(ocr *types.OcrResult) types.BoundingBox {
	var region types.BoundingBox
	for _, para := range ocr.Paragraphs {
		region = region.Union(para.Box)
	}
	return region
}

// extractTitle picks a short paragraph near the top of the screen.
func extractTitle(ocr *types.OcrResult) string {
	for _, para := range ocr.Paragraphs {
		if para.Box.Y >= 200 {
			continue
		}
		text := strings.TrimSpace(para.Text)
		if text == "" || len(text) >= 100 || len(strings.Fields(text)) >= 10 {
			continue
		}
		return text
	}
	return "Untitled Problem"
}

// extractStarterCode looks for solution skeleton anchors in code
// paragraphs.
func extractStarterCode(ocr *types.OcrResult) string {
	for _, para := range ocr.Paragraphs {
		if para.SemanticType != types.TextCodeSnippet {
			continue
		}
		text := strings.TrimSpace(para.Text)
		for _, anchor := range starterAnchors {
			if strings.Contains(text, anchor) {
				return text
			}
		}
	}
	return ""
}
