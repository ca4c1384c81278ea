package openai

import (
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "type": {
            "type": "string"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["label", "type", "importance"],
        "additionalProperties": false
      }
    },
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "subject": {
            "type": "string"
          },
          "predicate": {
            "type": "string"
          },
          "object": {
            "type": "string"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["subject", "predicate", "object", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relations"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the most important entities and relations from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity labels must be lowercase, 1-3 words, singular form only.
- The entity type field should match one of the listed values where possible: %s.
- Importance is an integer from 1 (least relevant) to 10 (most central). Rate based on how essential the item is for understanding the text.
- A relation's subject and object MUST both appear as entity labels in the same response. Never reference an entity you did not list.
- Include only entities and relations that are explicitly mentioned or clearly implied by the text. Do not hallucinate.
- If nothing can be identified, return "entities": [] and "relations": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "The Eiffel Tower was designed by Gustave Eiffel and stands in Paris."
Output: {"entities":[{"label":"eiffel tower","type":"location","importance":10},{"label":"gustave eiffel","type":"person","importance":8},{"label":"paris","type":"location","importance":7}],"relations":[{"subject":"eiffel tower","predicate":"designed by","object":"gustave eiffel","importance":8},{"subject":"eiffel tower","predicate":"located in","object":"paris","importance":7}]}`

// buildSystemPrompt assembles the extraction system prompt with the schema
// and the steering entity kinds.
func buildSystemPrompt() string {
	kinds := strings.Join(ai.EntityKinds, ", ")
	return fmt.Sprintf(extractionPromptTemplate, extractionResponseSchema, kinds)
}
