package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docuspace/docuspace/config"
	"github.com/docuspace/docuspace/internal/db"
	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/embeddings"
	"github.com/docuspace/docuspace/internal/llm"
	"github.com/docuspace/docuspace/internal/rag"
	"github.com/docuspace/docuspace/internal/vector"
)

func main() {
	var (
		indexPath   = flag.String("index", "", "Index a document file into the space")
		query       = flag.String("query", "", "Run a search query")
		deleteDoc   = flag.String("delete", "", "Delete a document by filename")
		deleteSpace = flag.Bool("delete-space", false, "Delete the whole space given by -space")
		statsFlag   = flag.Bool("stats", false, "Print index statistics")
		resetFlag   = flag.Bool("reset", false, "Reset the index (requires allow_reset in config)")
		space       = flag.String("space", "default", "Space id for the operation")
		fileFilter  = flag.String("file", "", "Restrict a query to one filename")
		owner       = flag.String("owner", "local", "Owner identity for metadata records")
		maxResults  = flag.Int("max-results", 0, "Maximum search results (1-50, 0 = default)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	embedder := embeddings.NewTextEmbedder(
		cfg.OpenAI.BaseURL, cfg.APIKey(), cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Dimensions)
	generator := llm.NewClient(cfg.OpenAI.BaseURL, cfg.APIKey(), cfg.OpenAI.ChatModel)

	var (
		store vector.Store
		meta  *db.DB
	)
	if cfg.Index.Store == "memory" {
		store = vector.NewMemoryStore()
	} else {
		database, err := db.New(ctx, cfg.Database.ConnectionString)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()
		store = vector.NewPgStore(database.Pool())
		meta = database
	}

	svc, err := rag.New(ctx, embedder, store, generator, rag.Options{
		ChunkSize:    cfg.Processing.ChunkSize,
		ChunkOverlap: cfg.Processing.ChunkOverlap,
		AllowReset:   cfg.Index.AllowReset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing service: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *indexPath != "":
		if meta != nil {
			manager := rag.NewManager(svc, meta)
			rec, err := manager.UploadFile(ctx, *owner, *space, *indexPath)
			exitOn(err)
			fmt.Printf("Indexed %s into space %s (%d bytes)\n", rec.Filename, rec.SpaceID, rec.SizeBytes)
			return
		}
		text, err := documents.ExtractText(*indexPath)
		exitOn(err)
		filename := filepath.Base(*indexPath)
		exitOn(svc.IndexDocument(ctx, text, filename, *space))
		fmt.Printf("Indexed %s into space %s\n", filename, *space)

	case *query != "":
		resp, _ := svc.Search(ctx, rag.SearchRequest{
			Query:      *query,
			SpaceIDs:   []string{*space},
			Filename:   *fileFilter,
			MaxResults: *maxResults,
		})
		printJSON(resp)

	case *deleteDoc != "":
		var deleted int
		if meta != nil {
			deleted, err = rag.NewManager(svc, meta).DeleteDocument(ctx, *owner, *space, *deleteDoc)
		} else {
			deleted, err = svc.DeleteDocument(ctx, *deleteDoc, *space)
		}
		exitOn(err)
		fmt.Printf("Deleted %d chunks\n", deleted)

	case *deleteSpace:
		var deleted int
		if meta != nil {
			deleted, err = rag.NewManager(svc, meta).DeleteSpace(ctx, *owner, *space)
		} else {
			deleted, err = svc.DeleteSpace(ctx, *space)
		}
		exitOn(err)
		fmt.Printf("Deleted space %s (%d chunks)\n", *space, deleted)

	case *statsFlag:
		stats, err := svc.Stats(ctx)
		exitOn(err)
		printJSON(stats)

	case *resetFlag:
		exitOn(svc.ResetIndex(ctx))
		fmt.Println("Index reset")

	default:
		flag.Usage()
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
