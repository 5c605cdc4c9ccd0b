package solver

import (
	"fmt"
	"strings"

	"screensage/internal/types"
)

// maxPromptTestCases bounds how many sample cases are embedded in the
// prompt.
const maxPromptTestCases = 5

// systemPrompt declares expertise in the detected language.
func systemPrompt(problem *types.DetectedProblem) string {
	lang := string(problem.Language)
	return fmt.Sprintf(
		"You are an expert %s developer specializing in solving coding problems. "+
			"You write clean, efficient, and well-documented code. "+
			"You always consider edge cases and provide optimal solutions. "+
			"When solving problems, you think step by step and explain your reasoning clearly. "+
			"Your solutions are production-ready and follow best practices for %s.",
		lang, lang)
}

// buildPrompt composes the user prompt for the problem's type and mandates
// the labeled fenced block output format.
func buildPrompt(problem *types.DetectedProblem) string {
	var b strings.Builder
	lang := string(problem.Language)
	langTag := strings.ToLower(lang)

	switch problem.Type {
	case types.ProblemAlgorithmChallenge:
		platform := string(problem.Platform)
		if platform == "" {
			platform = string(types.PlatformUnknown)
		}
		fmt.Fprintf(&b, "Please solve the following %s problem from %s:\n\n", lang, platform)
		fmt.Fprintf(&b, "Problem: %s\n\n", problem.Title)
		fmt.Fprintf(&b, "Description:\n%s\n\n", problem.Description)

		if problem.StarterCode != "" {
			fmt.Fprintf(&b, "Starter Code:\n```%s\n%s\n```\n\n", langTag, problem.StarterCode)
		}
		if len(problem.TestCases) > 0 {
			b.WriteString("Test Cases:\n")
			for i, test := range problem.TestCases {
				if i == maxPromptTestCases {
					break
				}
				fmt.Fprintf(&b, "Test Case %d:\nInput: %s\nExpected Output: %s\n\n",
					i+1, test.Input, test.ExpectedOutput)
			}
		}
		if len(problem.Constraints) > 0 {
			b.WriteString("Constraints:\n")
			for _, constraint := range problem.Constraints {
				fmt.Fprintf(&b, "- %s\n", constraint)
			}
			b.WriteString("\n")
		}

	case types.ProblemCompilationError, types.ProblemRuntimeError:
		fmt.Fprintf(&b, "Please help fix the following %s error in %s:\n\n", problem.Type, lang)
		if problem.ErrorDetails != nil {
			fmt.Fprintf(&b, "Error Type: %s\n", problem.ErrorDetails.Kind)
			fmt.Fprintf(&b, "Error Message: %s\n\n", problem.ErrorDetails.Message)
			if problem.ErrorDetails.StackTrace != "" {
				fmt.Fprintf(&b, "Stack Trace:\n%s\n\n", problem.ErrorDetails.StackTrace)
			}
		}
		fmt.Fprintf(&b, "Code Context:\n```%s\n%s\n```\n\n", langTag, problem.CodeContext.VisibleCode)

	case types.ProblemTestFailure:
		fmt.Fprintf(&b, "Please fix the failing tests in this %s code:\n\n", lang)
		fmt.Fprintf(&b, "Current Code:\n```%s\n%s\n```\n\n", langTag, problem.CodeContext.VisibleCode)
		b.WriteString("Failing Tests:\n")
		for _, test := range problem.TestCases {
			if test.Passed != nil && !*test.Passed {
				actual := test.ActualOutput
				if actual == "" {
					actual = "None"
				}
				fmt.Fprintf(&b, "Input: %s\nExpected: %s\nActual: %s\n\n",
					test.Input, test.ExpectedOutput, actual)
			}
		}

	default:
		fmt.Fprintf(&b, "Please provide a solution for the following %s problem:\n\n", lang)
		fmt.Fprintf(&b, "%s\n\n", problem.Description)
	}

	b.WriteString("\nRequirements:\n")
	fmt.Fprintf(&b, "1. Provide a complete, working solution in %s\n", lang)
	b.WriteString("2. Include a clear explanation of your approach\n")
	b.WriteString("3. Analyze the time complexity\n")
	b.WriteString("4. Analyze the space complexity\n")

	b.WriteString("\nFormat your response as follows:\n")
	b.WriteString("```solution\n[Your code here]\n```\n\n")
	b.WriteString("```explanation\n[Your explanation here]\n```\n\n")
	b.WriteString("```time_complexity\n[Time complexity analysis]\n```\n\n")
	b.WriteString("```space_complexity\n[Space complexity analysis]\n```\n")

	return b.String()
}
