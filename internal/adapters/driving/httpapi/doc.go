// Package httpapi serves the embedding pipeline and the query orchestrator
// over HTTP. Routes keep the JSON field names of the original edge functions
// (documentId, chunkSize, overlap, query, topK, documentIds) so existing
// browser clients keep working. Status transitions are pushed to websocket
// clients on /ws/status.
package httpapi
