package llm

import "strings"

// ExtractJSON pulls the JSON body out of a model response. Models asked for
// strict JSON still wrap it in markdown fences or preamble text often enough
// that every JSON-consuming call site needs this.
//
// Resolution order: a ```json fenced block, then any ``` fenced block, then
// the widest substring bounded by the first '{' or '[' and the matching last
// '}' or ']'. Falls back to the trimmed input.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)

	if body, ok := fencedBlock(s, "```json"); ok {
		return body
	}
	if body, ok := fencedBlock(s, "```"); ok {
		return body
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start := objStart
	closer := byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		closer = ']'
	}
	if start == -1 {
		return s
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s
	}
	return strings.TrimSpace(s[start : end+1])
}

// fencedBlock returns the content between an opening fence and the closing
// ``` fence, if both are present.
func fencedBlock(s, fence string) (string, bool) {
	i := strings.Index(s, fence)
	if i == -1 {
		return "", false
	}
	rest := s[i+len(fence):]
	j := strings.Index(rest, "```")
	if j == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}
