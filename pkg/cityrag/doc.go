// Package cityrag embeds the cityrag question answering pipeline in a Go program.
//
// The client loads the precomputed corpus (parquet metadata plus a FAISS flat L2
// index) into memory and answers questions by retrieval, reranking, per-metric
// diversification and grounded generation:
//
//	client, err := cityrag.New(ctx,
//	    cityrag.WithCorpus("data/rag_knowledge_metadata.parquet", "data/rag_knowledge.index"),
//	    cityrag.WithOpenAIEmbedder("http://localhost:8081/v1", "", "intfloat/multilingual-e5-base"),
//	    cityrag.WithRerankerURL("http://localhost:8082"),
//	    cityrag.WithGemini(os.Getenv("GEMINI_API_KEY"), "gemini-2.5-flash-lite"),
//	)
//	if err != nil {
//	    return err
//	}
//	ans, err := client.Ask(ctx, "Kadıköy'de kişi başına yeşil alan ne kadar?", 7)
//
// Custom model services plug in through the Embedder, Reranker and Generator
// interfaces.
package cityrag
