package main

import (
	activityhandler "meistro/internal/activity/handler"
	activityservice "meistro/internal/activity/service"
	bookinghandler "meistro/internal/booking/handler"
	bookingrepo "meistro/internal/booking/repository"
	bookingservice "meistro/internal/booking/service"
	bookingvalidator "meistro/internal/booking/validator"
	chathandler "meistro/internal/chat/handler"
	chatrepo "meistro/internal/chat/repository"
	chatservice "meistro/internal/chat/service"
	"meistro/internal/dispatch"
	"meistro/pkg/app"
	"meistro/pkg/config"
	"meistro/pkg/kafka"
	kafka_config "meistro/pkg/kafka/config"
	kafkamiddleware "meistro/pkg/kafka/middleware"
)

const ServiceName = "meistro-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	serverApp := app.NewApplication()

	dispatcher := initDispatcher(cfg, serverApp)

	bookingService := initBookingService(cfg, dispatcher)
	chatService := initChatService(cfg, dispatcher)
	activityService := initActivityService(cfg, bookingService)

	serverApp.SetApp(cfg,
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		chathandler.NewChatHandler(chatService, cfg.Log),
		activityhandler.NewActivityHandler(activityService, cfg.Log),
	)
	serverApp.Run()
}

func initDispatcher(cfg *config.Config, serverApp *app.Application) dispatch.Dispatcher {
	kafkaCfg := kafka_config.Load()
	metrics := kafkamiddleware.NewMetrics()

	bookingProducer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create booking events producer", "error", err)
	}
	bookingProducer.Use(kafkamiddleware.ProducerLogging(cfg.Log))
	bookingProducer.Use(metrics.Producer())
	serverApp.RegisterCloser(bookingProducer)

	chatProducer, err := kafka.NewProducer(kafkaCfg, cfg.ChatEventsTopic, cfg.ChatEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create chat events producer", "error", err)
	}
	chatProducer.Use(kafkamiddleware.ProducerLogging(cfg.Log))
	chatProducer.Use(metrics.Producer())
	serverApp.RegisterCloser(chatProducer)

	return dispatch.NewKafkaDispatcher(bookingProducer, chatProducer, cfg.Log)
}

func initBookingService(cfg *config.Config, dispatcher dispatch.Dispatcher) bookingservice.BookingService {
	bookingValidator := bookingvalidator.NewBookingValidator(cfg.Log)
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepo.NewBookingLockRepository(cfg)

	svc := bookingservice.NewBookingService(bookingRepo, lockRepo, bookingValidator, dispatcher, cfg)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return svc
}

func initChatService(cfg *config.Config, dispatcher dispatch.Dispatcher) chatservice.ChatService {
	conversationRepo := chatrepo.NewMongoConversationRepository(cfg)
	messageRepo := chatrepo.NewMongoMessageRepository(cfg)
	markerRepo := chatrepo.NewMongoReadMarkerRepository(cfg)

	svc := chatservice.NewChatService(conversationRepo, messageRepo, markerRepo, dispatcher, cfg)
	cfg.Log.Info("Chat service initialized", "database", cfg.MongoDatabaseName)
	return svc
}

func initActivityService(cfg *config.Config, bookings activityservice.PendingCounter) activityservice.ActivityService {
	conversationRepo := chatrepo.NewMongoConversationRepository(cfg)
	messageRepo := chatrepo.NewMongoMessageRepository(cfg)
	markerRepo := chatrepo.NewMongoReadMarkerRepository(cfg)

	svc := activityservice.NewActivityService(bookings, conversationRepo, messageRepo, markerRepo, cfg)
	cfg.Log.Info("Activity service initialized", "unread_fanout", cfg.UnreadFanout)
	return svc
}
