// Package embeddings turns chunk text into vectors.
//
// Three providers share the Provider interface: fastembed (local ONNX,
// requires cgo), tei (HuggingFace text-embeddings-inference over HTTP) and
// openai (any OpenAI-compatible /embeddings endpoint via langchaingo).
// Wrap a provider with Instrument to record OTel latency metrics.
package embeddings
