package pprof

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
)

// ListenAndServe exposes the net/http/pprof handlers on their own port until ctx is done
func ListenAndServe(ctx context.Context, port int) error {
	server := http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: http.DefaultServeMux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("pprof listener stopped: %w", err)
	}
	return nil
}
