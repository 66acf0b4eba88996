package cli

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	stub "github.com/cwygoda/reel/internal/adapter/http"
)

func runStubServer(args []string) error {
	var addr, assetBase *string
	var renderPolls *int
	a, _, err := setup("stub-server", args, func(fs *flag.FlagSet) {
		// registered after config is loaded, so defaults come from [stub]
		addr = fs.String("addr", "", "listen address (default from config)")
		renderPolls = fs.Int("render-polls", 0, "status reads until a video finishes (default from config)")
		assetBase = fs.String("asset-base-url", "", "serve completed videos from this external base URL")
	})
	if err != nil {
		return err
	}
	defer a.close()

	opts := stub.Options{
		RenderPolls:  a.cfg.Stub.RenderPolls,
		AssetBaseURL: a.cfg.Stub.AssetBaseURL,
	}
	if *renderPolls > 0 {
		opts.RenderPolls = *renderPolls
	}
	if *assetBase != "" {
		opts.AssetBaseURL = *assetBase
	}
	listen := a.cfg.Stub.Addr
	if *addr != "" {
		listen = *addr
	}

	srv := stub.NewServer(listen, opts)

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("stub backend listening on %s (render after %d status reads)", srv.Addr(), opts.RenderPolls)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Printf("shutting down")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("shutdown complete")
	return nil
}
