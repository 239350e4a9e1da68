package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imagemill/imagemill/internal/cache"
	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/imagemill/imagemill/internal/kafka"
	"github.com/imagemill/imagemill/internal/repository"
	"github.com/imagemill/imagemill/internal/service"
	"github.com/imagemill/imagemill/internal/storage"
	"github.com/imagemill/imagemill/internal/transport"
	"github.com/imagemill/imagemill/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подкллючиться к хранилищу
	strg := storage.NewBlobStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)
	// воркер всегда обрабатывает локально
	inv := invoker.NewLocal(strg)
	// кэш должен быть общим с API, иначе терминальные статусы не собьют
	// закэшированные списки
	lc := newListCache(appConfig)
	// создаем экземпляр сервиса: воркеру нужен только Complete
	var svc JobWorkerService = service.NewJobService(repo, lc, strg, inv, nil)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	go worker.NewWorkerInstance(svc, queue, cons).StartWorker(ctx)

	// direct-call эндпоинт для remote-режима API
	srv := newWorkerServer(appConfig, inv)
	go func() {
		log.Printf("Worker endpoint running on http://localhost%s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Worker endpoint stopped: %v", err)
			stop()
		}
	}()

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to shut down worker endpoint correctly:", err)
	}

	shutdown(cons, dbConn, lc)
	log.Println("Exiting worker...")
}

// newListCache picks the cache backend from config, mirroring the API tier.
func newListCache(appConfig *config.Config) cache.ListCache {
	if appConfig.GetString("CACHE_BACKEND") == "redis" {
		return cache.NewRedis(appConfig.GetString("REDIS_ADDR"), cache.DefaultTTL)
	}
	return cache.NewMemory(cache.DefaultTTL)
}

func newWorkerServer(appConfig *config.Config, inv invoker.Invoker) *http.Server {
	handler := transport.NewWorkerHandler(inv, appConfig.GetString("WORKER_SECRET"))

	engine := ginext.New(appConfig.GetString("GIN_MODE"))
	engine.POST("/v1/worker/process", handler.Process)

	return &http.Server{
		Addr:    ":" + appConfig.GetString("WORKER_PORT"),
		Handler: engine,
	}
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB, lc cache.ListCache) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing Redis connection if that backend is in use
	if rc, ok := lc.(*cache.Redis); ok {
		if err := rc.Close(); err != nil {
			log.Println("Failed to close Redis-conn correctly:", err)
		}
	}

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
