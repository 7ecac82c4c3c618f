// Package rag defines the data model shared by the playground: pages as
// Documents, the chunk table rows, the document shaped knowledge graph
// entities and the EntityStore interface that backends implement.
//
// # Chunks
//
// Every Chunk records the page it came from and its character offsets in
// that page. Offsets are runes, start inclusive and end exclusive, so they
// index the same characters the highlighter colours:
//
//	for _, c := range chunks {
//		fmt.Printf("page %d chunk %d [%d, %d)\n", c.PageIndex, c.ChunkIndex, c.StartOffset, c.EndOffset)
//	}
//	spans := rag.PageSpans(chunks, 0)
//
// Chunks that could not be located carry -1 offsets and are left out of
// PageSpans.
//
// # Entities
//
// An Entity is stored as one document:
//
//	{
//	  "_id": "Alice",
//	  "type": "Person",
//	  "attributes": {"role": ["founder"]},
//	  "relationships": {
//	    "target_ids": ["Acme"],
//	    "types": ["works_at"],
//	    "attributes": [{"since": ["2019"]}]
//	  }
//	}
//
// Relationships are parallel arrays. Edges tolerates ragged arrays and Merge
// unions attributes and deduplicates relationships, which is how entities
// extracted from several chunks are combined.
//
// # Subpackages
//
//   - loader: page loaders for PDF, text, Markdown, HTML and CSV files
//   - splitter: chunking strategies that locate every chunk in its page
//   - highlight: coverage runs and highlighted rendering
//   - engine: entity extraction, traversal and question answering
//   - render: graph views for the browser and for text
//
// LangChainDocumentLoader adapts any langchaingo document loader to
// DocumentLoader.
package rag
