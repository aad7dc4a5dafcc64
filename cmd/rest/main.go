package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-tutoring-engine/internal/bootstrap"
	"ai-tutoring-engine/internal/config"
	"ai-tutoring-engine/internal/server"
	"ai-tutoring-engine/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.App)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(ctx, cfg)
	defer container.Engine.Close()

	// 4. Warm the catalog; the gateway still starts when the API is down
	refreshCtx, cancel := context.WithTimeout(ctx, cfg.Tutor.HTTPTimeout)
	if err := container.Engine.Service.RefreshCatalog(refreshCtx); err != nil {
		log.Printf("[WARN] Initial catalog refresh failed: %v", err)
	}
	cancel()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gateway...")
		_ = srv.Shutdown()
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
	_ = container.Engine.Logger.Sync()
}
