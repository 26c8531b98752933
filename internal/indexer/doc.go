// Package indexer runs the document indexing pipeline.
//
// Each document pass follows the same protocol:
//
//  1. Fingerprint the raw text and skip the document if the stored marker
//     already equals the checksum (unless Config.Force is set).
//  2. UpsertDocument: create or resolve the row and clear the marker.
//  3. Split the text into sections.
//  4. Embed every section, in order. The first failure aborts the pass.
//  5. ReplaceSections: persist the whole set in one transaction.
//  6. FinalizeDocument: write the checksum as the marker.
//
// A pass that stops anywhere between 2 and 6 leaves the marker empty, so the
// next run re-indexes the document. Failures are isolated per document and
// reported as DocumentResult values; only a discovery error ends a run early.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, indexer.Config{Workers: 4}, indexer.WithLogger(logger))
//
//	stats, err := idx.Run(ctx, discovery.Walk(ctx, "docs", discovery.Options{}))
//	if err != nil {
//	    // discovery failed; stats covers the documents seen before
//	}
//	fmt.Println(stats.Summary())
//
// # Concurrency
//
// Run processes up to Config.Workers documents at once. Passes for the same path
// are serialized. Provider rate limits are enforced inside the embedder, which
// all workers share.
package indexer
