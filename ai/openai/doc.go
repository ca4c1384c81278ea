// Package openai implements the ai interfaces against any OpenAI-compatible
// API (OpenAI itself, Ollama, LocalAI, vLLM). Embeddings and concept
// extraction may target different hosts and models.
package openai
