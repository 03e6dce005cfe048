// Package searcher implements the vector similarity search engine.
//
// A search embeds the query, scans all stored chunk embeddings in
// fixed-size batches with a cancellation checkpoint between batches,
// and retains entries above the similarity threshold. When the primary
// threshold retains nothing, one retry runs at a fixed, lower secondary
// threshold. When vectors produce nothing, or the session is degraded
// to hash embeddings, the engine delegates to the BM25 keyword fallback
// and tags the response method "keyword" so callers can tell the two
// apart.
package searcher
