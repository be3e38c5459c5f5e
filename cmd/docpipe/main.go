// Command docpipe runs the extraction pipeline once over a local file:
// it loads the document, registers an extraction job, and either processes
// it in place or hands it to the worker queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kirillkom/docpipe/internal/bootstrap"
	"github.com/kirillkom/docpipe/internal/config"
	"github.com/kirillkom/docpipe/internal/observability/logging"
)

func main() {
	enqueue := flag.Bool("enqueue", false, "publish the job to the worker queue instead of processing inline")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docpipe [-enqueue] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := config.Load()
	logger := logging.NewJSONLogger("docpipe-cli", cfg.LogLevel)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, "docpipe-cli", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	doc, err := app.Loader.Load(ctx, path)
	if err != nil {
		log.Fatalf("load document: %v", err)
	}
	if err := app.Store.CreateJob(ctx, doc); err != nil {
		log.Fatalf("create job: %v", err)
	}
	logger.Info("job created", "document_id", doc.ID, "pages", len(doc.Pages))

	if *enqueue {
		if err := app.Queue.PublishDocumentLoaded(ctx, doc.ID); err != nil {
			log.Fatalf("enqueue job: %v", err)
		}
		fmt.Println(doc.ID)
		return
	}

	if err := app.ProcessUC.ProcessByID(ctx, doc.ID); err != nil {
		log.Fatalf("process document: %v", err)
	}
	fmt.Println(doc.ID)
}
