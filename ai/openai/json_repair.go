// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import "strings"

// repairJSON fixes the malformed key quoting some models emit, where the
// opening quote of an object key is dropped: `{label": "x"}` becomes
// `{"label": "x"}`. Input it does not recognize passes through unchanged.
func repairJSON(s string) string {
	rs := []rune(s)
	var out strings.Builder
	out.Grow(len(s) + 16)

	i := 0
	for i < len(rs) {
		ch := rs[i]
		out.WriteRune(ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		// Keys appear after { or , with optional whitespace.
		for i < len(rs) && isJSONSpace(rs[i]) {
			out.WriteRune(rs[i])
			i++
		}
		if i >= len(rs) || rs[i] == '"' || !isKeyRune(rs[i]) {
			continue
		}

		j := i
		for j < len(rs) && isKeyRune(rs[j]) {
			j++
		}
		// A bare word ending in ": is a key missing its opening quote.
		if j+1 < len(rs) && rs[j] == '"' && rs[j+1] == ':' {
			out.WriteRune('"')
		}
		for ; i < j; i++ {
			out.WriteRune(rs[i])
		}
	}
	return out.String()
}

func isJSONSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
