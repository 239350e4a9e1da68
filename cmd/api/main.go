// Package main (in api-subfolder) provides launch of the whole application except worker
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

	"github.com/imagemill/imagemill/internal/auth"
	"github.com/imagemill/imagemill/internal/cache"
	"github.com/imagemill/imagemill/internal/invoker"
	"github.com/imagemill/imagemill/internal/kafka"
	"github.com/imagemill/imagemill/internal/mwlogger"
	"github.com/imagemill/imagemill/internal/repository"
	"github.com/imagemill/imagemill/internal/service"
	"github.com/imagemill/imagemill/internal/storage"
	"github.com/imagemill/imagemill/internal/storage/miniostorage"
	"github.com/imagemill/imagemill/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
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
	err := zlog.SetLevel("info")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewBlobStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)

	// кэш списков: in-memory по умолчанию, redis для мульти-инстансов
	lc := newListCache(appConfig)

	// выбираем способ запуска обработки: local/remote/queue
	inv, queue, pub := newInvoker(ctx, appConfig, strg)

	// верификация токенов через userinfo-эндпоинт провайдера
	verifier := auth.NewRemote(appConfig.GetString("IDP_USERINFO_URL"))

	// создаем экземпляр сервиса
	var svc JobAPIService = service.NewJobService(repo, lc, strg, inv, queue)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewJobHandler(svc, verifier)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/jobs", handlers.Create)              // создание задачи
	engine.GET("/jobs", handlers.List)                 // список задач владельца с пагинацией
	engine.GET("/jobs/admin/all", handlers.AdminList)  // админский список без скоупа
	engine.GET("/jobs/:id", handlers.Get)              // одна задача
	engine.POST("/jobs/:id/process", handlers.Trigger) // запуск обработки
	engine.GET("/jobs/:id/download", handlers.Download)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to shut down HTTP-server correctly:", err)
	}

	shutdown(pub, dbConn, lc)
	log.Println("Exiting app...")
}

// newListCache picks the cache backend from config. Anything but "redis"
// falls back to the in-process map.
func newListCache(appConfig *config.Config) cache.ListCache {
	if appConfig.GetString("CACHE_BACKEND") == "redis" {
		return cache.NewRedis(appConfig.GetString("REDIS_ADDR"), cache.DefaultTTL)
	}
	return cache.NewMemory(cache.DefaultTTL)
}

// newInvoker builds the dispatch path from PROCESS_MODE. Queue mode returns
// the producer too so the shutdown sequence can close it.
func newInvoker(ctx context.Context, appConfig *config.Config, strg *miniostorage.MinioBlobStorage) (invoker.Invoker, service.Enqueuer, *wbfkafka.Producer) {
	switch appConfig.GetString("PROCESS_MODE") {
	case "queue":
		broker := appConfig.GetString("KAFKA_BROKER")
		kafka.WaitKafkaReady(broker)
		topic := appConfig.GetString("KAFKA_TOPIC")
		kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic)
		pub := wbfkafka.NewProducer([]string{broker}, topic)
		q := invoker.NewQueue(pub)
		return q, q, pub
	case "remote":
		inv := invoker.NewRemote(appConfig.GetString("WORKER_URL"), appConfig.GetString("WORKER_SECRET"))
		return inv, nil, nil
	default:
		return invoker.NewLocal(strg), nil, nil
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB, lc cache.ListCache) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if pub != nil {
		if err := pub.Close(); err != nil {
			log.Println("Failed to close Kafka-producer:", err)
		}
		log.Println("Kafka-producer connection closed.")
	}

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
