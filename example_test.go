package fragdb_test

import (
	"context"
	"fmt"
	"log"

	"github.com/fragdb/fragdb"
)

func Example() {
	ctx := context.Background()

	db, err := fragdb.New(3)
	if err != nil {
		log.Fatal(err)
	}

	_, err = db.Ingest(ctx, fragdb.IngestRequest{
		DocumentID: "getting-started",
		Source:     "guide.md",
		Chunks: []fragdb.Chunk{
			{Text: "installation steps", Embedding: []float32{1, 0, 0}},
			{Text: "configuration reference", Embedding: []float32{0, 1, 0}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	results, err := db.Query(ctx, []float32{0.9, 0.1, 0}, 1)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("%s: %s\n", r.DocumentID, r.Text)
	}
	// Output:
	// getting-started: installation steps
}

func ExampleStore_Search() {
	ctx := context.Background()

	db, err := fragdb.New(3)
	if err != nil {
		log.Fatal(err)
	}

	_, err = db.Ingest(ctx, fragdb.IngestRequest{
		DocumentID: "faq",
		Source:     "faq.md",
		Chunks: []fragdb.Chunk{
			{Text: "how to reset a password", Embedding: []float32{1, 0, 0}},
			{Text: "how to delete an account", Embedding: []float32{0, 1, 0}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	result, err := db.Search([]float32{0.8, 0.2, 0}).
		Contains("password").
		First(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Text)
	// Output:
	// how to reset a password
}

func ExampleStore_DeleteDocument() {
	ctx := context.Background()

	db, err := fragdb.New(3)
	if err != nil {
		log.Fatal(err)
	}

	_, err = db.Ingest(ctx, fragdb.IngestRequest{
		DocumentID: "obsolete",
		Source:     "old.txt",
		Chunks:     []fragdb.Chunk{{Text: "outdated", Embedding: []float32{1, 0, 0}}},
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := db.DeleteDocument(ctx, "obsolete"); err != nil {
		log.Fatal(err)
	}

	results, err := db.Query(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(len(results))
	// Output:
	// 0
}
