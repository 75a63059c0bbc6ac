package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicbooking/internal/adapters/cache"
	"github.com/zatekoja/clinicbooking/internal/adapters/database"
	"github.com/zatekoja/clinicbooking/internal/adapters/events"
	"github.com/zatekoja/clinicbooking/internal/adapters/search"
	"github.com/zatekoja/clinicbooking/internal/adapters/sequence"
	"github.com/zatekoja/clinicbooking/internal/api/handlers"
	"github.com/zatekoja/clinicbooking/internal/api/routes"
	"github.com/zatekoja/clinicbooking/internal/application/services"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	"github.com/zatekoja/clinicbooking/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	applied, err := database.NewMigrator(pgClient).Up(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	log.Info().Int("applied", applied).Msg("database schema up to date")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			if cfg.Booking.SequenceBackend == "redis" {
				log.Fatal().Err(err).Msg("Redis is required by SEQUENCE_BACKEND=redis")
			}
			log.Warn().Err(err).Msg("continuing without Redis: no patient cache, no event stream")
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}

	var index providers.BookingIndex
	if cfg.Typesense.URL != "" {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("continuing without booking search")
		} else {
			adapter := search.NewTypesenseAdapter(typesenseClient)
			if err := adapter.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure booking search schema")
			}
			index = adapter
		}
	}

	var patientRepo repositories.PatientRepository = database.NewPatientAdapter(pgClient)
	var eventBus providers.EventBus
	if redisClient != nil {
		patientRepo = database.NewCachedPatientAdapter(patientRepo, cache.NewRedisAdapter(redisClient, "clinic"), cfg.Booking.PatientCacheTTL)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var sequenceProvider providers.SequenceProvider
	switch cfg.Booking.SequenceBackend {
	case "redis":
		opNumbers := entities.OpNumberSequence
		opNumbers.Code = cfg.Booking.SequenceCode
		sequenceProvider = sequence.NewRedisSequence(redisClient, opNumbers)
	default:
		sequenceProvider = database.NewSequenceAdapter(pgClient)
	}

	bookingService := services.NewBookingService(
		services.BookingRepositories{
			Appointments:       database.NewAppointmentAdapter(pgClient, metrics),
			DoctorAppointments: database.NewDoctorAppointmentAdapter(pgClient),
			StateChanges:       database.NewStateChangeAdapter(pgClient),
			Patients:           patientRepo,
			Doctors:            database.NewDoctorAdapter(pgClient),
			Transactor:         database.NewTransactor(pgClient),
		},
		sequenceProvider,
		services.BookingOptions{
			SequenceCode:   cfg.Booking.SequenceCode,
			SequenceStrict: cfg.Booking.SequenceStrict,
			Location:       cfg.Booking.Location(),
			PhoneRegion:    cfg.Booking.DefaultPhoneRegion,
		},
	).WithMetrics(metrics)
	if eventBus != nil {
		bookingService.WithEventBus(eventBus)
	}
	if index != nil {
		bookingService.WithIndex(index)
	}

	patientService := services.NewPatientService(patientRepo, cfg.Booking.DefaultPhoneRegion)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	router := routes.NewRouter(
		handlers.NewAppointmentHandler(bookingService),
		handlers.NewPatientHandler(patientService),
		sseHandler,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("sequence_backend", cfg.Booking.SequenceBackend).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
