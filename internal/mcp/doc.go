// Package mcp exposes the retrieval engine as MCP tools over stdio:
// rag_query, rag_ingest and rag_clear. Retrieved content is passed
// through the secrets redactor, when one is configured, before it is
// returned to the client.
package mcp
