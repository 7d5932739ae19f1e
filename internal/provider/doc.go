// Package provider normalizes heterogeneous translation backends behind one
// contract. LLM chat APIs (OpenAI and the OpenAI-compatible Claude, Groq, xAI
// and Qwen endpoints), Gemini, DeepL, Caiyun and keyless Google translation
// are selected by Kind through a factory registry. Each backend owns a
// credential.Rotator and classifies wire failures into the sentinel errors
// of this package so the batch orchestrator can decide how to retry.
package provider
