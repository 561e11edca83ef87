package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pranavd0828/make-your-video-2x/api"
	"github.com/Pranavd0828/make-your-video-2x/config"
	"github.com/Pranavd0828/make-your-video-2x/engine"
	"github.com/Pranavd0828/make-your-video-2x/job"
	"github.com/Pranavd0828/make-your-video-2x/progress"
	"github.com/Pranavd0828/make-your-video-2x/resource"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	eng := engine.NewExec(cfg)
	defer eng.Close()

	translator := progress.NewTranslator()
	lifecycle := engine.NewLifecycle(eng,
		engine.LoadConfig{FFmpegRef: cfg.FFBin, FFProbeRef: cfg.FFProbeBin},
		func(e engine.LogEvent) { translator.OnLog(e.Message) },
		func(e engine.ProgressEvent) { translator.OnFraction(e.Progress) },
	)

	store := resource.NewStore()
	machine, err := job.NewMachine(cfg, lifecycle, store, translator)
	if err != nil {
		log.Fatalf("Failed to initialize job machine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := lifecycle.Initialize(ctx); err != nil {
		log.Fatalf("Failed to start engine load: %v", err)
	}
	machine.Start(ctx)

	router := api.SetupRouter(ctx, machine, lifecycle, store, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
