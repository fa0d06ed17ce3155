package orchestrator

import (
	"regexp"
	"strings"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/llm"
)

// pseudoTag matches a bracketed tag mentioning "action", e.g.
// [execute_travel_action] or [Action].
var pseudoTag = regexp.MustCompile(`(?i)\[[^\]]*action[^\]]*\]`)

// ParsePseudoToolCalls extracts tool calls a model wrote as text instead of
// using native tool calling:
//
//	Sure thing!
//	[execute_travel_action]
//	{"action": "search_pois", "city": "Rome"}
//
// Each tag is followed by the nearest '{' and the object is cut at the
// matching '}'. Brace counting ignores JSON strings, so a '{' or '}' inside
// a string value breaks the cut. Tags without a balanced object are
// skipped.
//
// It returns (nil, "") when there is no tag and (nil, preface) when no tag
// yields an object. The preface is the text before the first tag.
func ParsePseudoToolCalls(content string) ([]llm.ToolCall, string) {
	matches := pseudoTag.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return nil, ""
	}
	preface := content[:matches[0][0]]

	var calls []llm.ToolCall
	for _, m := range matches {
		rel := strings.IndexByte(content[m[1]:], '{')
		if rel < 0 {
			continue
		}
		start := m[1] + rel
		depth := 0
		for i := start; i < len(content); i++ {
			switch content[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				calls = append(calls, llm.ToolCall{Name: actions.ToolName, Arguments: content[start : i+1]})
				break
			}
		}
	}
	if len(calls) == 0 {
		return nil, preface
	}
	return calls, preface
}
