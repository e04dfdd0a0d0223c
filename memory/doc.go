// Package memory implements long-term conversational memory for agents.
//
// The engine keeps a short rolling window of recent dialogue, compresses
// overflow into a rolling summary, extracts summaries into atomic fact
// chunks, and retrieves the chunks most relevant to new input by vector
// similarity.
//
// Architecture:
//   - Buffer: bounded conversation window plus the rolling summary
//   - Reformulator: rewrites raw input into a retrieval query
//   - Extractor: turns accumulated summaries into MemoryChunks
//   - VectorStore: insert / search / list / clear over a Backend
//   - Embedder: text-to-vector conversion (mock, cached, or ONNX)
//
// The Buffer is session-scoped and not safe to share across sessions.
// The VectorStore is the only process-wide state: reads may run
// concurrently, writes are serialized per store.
//
// Local SDK implementation:
//   - chromem-go backend (embedded vector database)
//   - ONNX embedder with all-MiniLM-L6-v2 behind the onnx build tag
//   - hash-based mock embedder for tests and offline development
package memory
