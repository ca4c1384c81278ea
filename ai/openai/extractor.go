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

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/quarryhq/quarry/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ConceptExtractor implements ai.ConceptExtractor using OpenAI-compatible
// chat APIs.
type ConceptExtractor struct {
	client        llms.Model
	minImportance int
	logger        *slog.Logger
}

// entity and relation mirror the JSON structure the LLM is asked for.
type entity struct {
	Label      string `json:"label"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

type relation struct {
	Subject    string `json:"subject"`
	Predicate  string `json:"predicate"`
	Object     string `json:"object"`
	Importance int    `json:"importance"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Entities  []entity   `json:"entities"`
	Relations []relation `json:"relations"`
}

// newConceptExtractor is an internal constructor that returns the concrete
// type. Used by Provider to manage the instance.
func newConceptExtractor(config *ai.Config) (*ConceptExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &ConceptExtractor{
		client:        client,
		minImportance: config.MinImportance,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewConceptExtractor creates a new concept extractor using the provided
// configuration.
//
// Returns ai.ConceptExtractor interface to enforce abstraction.
func NewConceptExtractor(config *ai.Config) (ai.ConceptExtractor, error) {
	return newConceptExtractor(config)
}

// ExtractConcepts extracts entities and relation triples from text using an
// LLM. It applies importance filtering and drops relations referencing
// entities the model did not also list.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	text = scrubString(text)

	systemPrompt := buildSystemPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedConcept{}, nil
		}

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(response.Choices[0].Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			// Try a local repair of common key-quoting mistakes before
			// spending another round trip on the model.
			if rerr := json.Unmarshal([]byte(repairJSON(responseText)), &result); rerr != nil {
				lastErr = err
				e.logger.Warn("error parsing extractor response",
					"attempt", attempt+1,
					"response", responseText,
					"err", err)
				continue
			}
			e.logger.Debug("repaired malformed extractor response", "attempt", attempt+1)
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	// Importance filter, then keep only relations whose endpoints survived.
	kept := make(map[string]bool, len(result.Entities))
	extracted := make([]ai.ExtractedConcept, 0, len(result.Entities)+len(result.Relations))
	for _, en := range result.Entities {
		if en.Importance < e.minImportance || en.Label == "" {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(en.Label))
		kept[label] = true
		extracted = append(extracted, ai.ExtractedConcept{
			Label:      label,
			Kind:       ai.KindEntity,
			Importance: en.Importance,
		})
	}
	for _, rel := range result.Relations {
		subject := strings.ToLower(strings.TrimSpace(rel.Subject))
		object := strings.ToLower(strings.TrimSpace(rel.Object))
		if rel.Importance < e.minImportance || rel.Predicate == "" {
			continue
		}
		if !kept[subject] || !kept[object] {
			e.logger.Debug("dropping relation with unknown endpoint",
				"subject", subject, "object", object)
			continue
		}
		extracted = append(extracted, ai.ExtractedConcept{
			Label:      strings.ToLower(strings.TrimSpace(rel.Predicate)),
			Kind:       ai.KindRelation,
			Subject:    subject,
			Object:     object,
			Importance: rel.Importance,
		})
	}

	// Sort by importance (descending)
	slices.SortFunc(extracted, func(a, b ai.ExtractedConcept) int {
		return b.Importance - a.Importance
	})

	e.logger.Debug("extracted concepts",
		"entities", len(result.Entities),
		"relations", len(result.Relations),
		"filtered", len(extracted))

	return extracted, nil
}
