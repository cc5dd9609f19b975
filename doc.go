// Package fragdb provides an embedded vector storage and retrieval layer
// with strong consistency between vectors and their chunk metadata.
//
// A Store pairs an exact (flat) vector index with a metadata store and
// routes every mutation through a coordination layer:
//
//   - Ingestion inserts vectors first, then commits metadata, with a
//     journaled window and compensating removal in between.
//   - Deletion is two-phase: metadata is tombstoned first, making chunks
//     invisible to queries immediately, then vectors and records are
//     physically purged. Interrupted deletions resume from the journal.
//   - Queries over-fetch candidates, filter tombstones after the metadata
//     join, and widen the fetch a bounded number of times, so in-progress
//     deletions never surface and never fail a query.
//   - A reconciliation pass repairs orphan vectors and unfinished purges;
//     it is the only component that corrects invariant violations.
//
// Vector ids are assigned monotonically and never reused, across deletions,
// index rebuilds, and snapshot save/load cycles.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := fragdb.New(384, fragdb.WithMetric(distance.MetricCosine))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ids, err := db.Ingest(ctx, fragdb.IngestRequest{
//		DocumentID: "report-2024",
//		Source:     "report.pdf",
//		Chunks: []fragdb.Chunk{
//			{Text: "first paragraph", Embedding: emb1},
//			{Text: "second paragraph", Embedding: emb2},
//		},
//	})
//
//	results, err := db.Search(query).KNN(5).Execute(ctx)
//
// Snapshots persist the store to any BlobStore backend (local directory,
// in-memory, MinIO, or S3):
//
//	store, _ := blobstore.NewLocalStore("./data")
//	err = db.SaveSnapshot(ctx, store, "snapshots/current")
//	db, err = fragdb.Load(ctx, store, "snapshots/current")
package fragdb
