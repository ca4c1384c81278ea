// Package ai defines the model-facing contracts of the ingestion system:
// text embedding and concept extraction. Implementations live in
// subpackages (ai/openai for OpenAI-compatible services, ai/mock for
// tests); a disabled extractor variant makes concept extraction fully
// skippable without changing any caller.
package ai
