package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"face-analyze-pipeline/analyze"
	"face-analyze-pipeline/camera"
	"face-analyze-pipeline/config"
	"face-analyze-pipeline/handlers"
	"face-analyze-pipeline/intake"
	"face-analyze-pipeline/metrics"
	"face-analyze-pipeline/pipeline"
	"face-analyze-pipeline/rabbitmq"
	"face-analyze-pipeline/service"
	"face-analyze-pipeline/store"
)

func main() {
	cfg := config.Load()

	log.SetHandler(text.New(os.Stderr))
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	metrics.Register()

	// Camera provider: file-backed frame sources keep the full capture flow
	// exercisable on headless deployments.
	provider := camera.NewFileProvider(cfg.FrameSources)
	constraints := camera.Constraints{
		Width:  camera.Dimension{Ideal: cfg.CaptureWidth},
		Height: camera.Dimension{Ideal: cfg.CaptureHeight},
		Facing: camera.Facing(cfg.CameraFacing),
	}
	controller := camera.NewController(provider, constraints, cfg.CameraWarmup)

	results := store.New(cfg.SessionFallbackPath)

	// The publisher is optional; analysis still works without a broker.
	var publisher pipeline.Publisher
	var amqpPublisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.WithError(err).Warn("failed to initialize RabbitMQ publisher, continuing without")
		} else {
			amqpPublisher = p
			publisher = p
		}
	}

	analyzer := analyze.NewClient(cfg.AnalyzeURL, cfg.RequestTimeout)
	p := pipeline.New(analyzer, results, publisher, pipeline.Options{
		MinImageBytes:     cfg.MinImageBytes,
		MaxImageDimension: cfg.MaxImageDimension,
		JPEGQuality:       cfg.JPEGQuality,
	})

	svc := service.New(controller, p, results)
	intakeClient := intake.NewClient(cfg.IntakeURL, cfg.RequestTimeout)

	var broker handlers.Broker
	if amqpPublisher != nil {
		broker = amqpPublisher
	}

	router := gin.Default()
	handlers.NewHandlers(svc, intakeClient, broker).Register(router.Group("/api/v1"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Release the camera and the broker connection before the HTTP drain.
	svc.CancelCapture()
	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close RabbitMQ publisher")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
