package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zatekoja/clinicbooking/internal/adapters/database"
	"github.com/zatekoja/clinicbooking/internal/adapters/search"
	"github.com/zatekoja/clinicbooking/internal/application/services"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/typesense"
)

func newReindexCommand() *cobra.Command {
	var (
		batchSize int
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the booking search index from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pgClient, err := connect()
			if err != nil {
				return err
			}
			defer pgClient.Close()

			if cfg.Typesense.URL == "" {
				return fmt.Errorf("TYPESENSE_URL is not set")
			}
			typesenseClient, err := typesense.NewClient(&cfg.Typesense)
			if err != nil {
				return err
			}

			bookingService := services.NewBookingService(
				services.BookingRepositories{
					Appointments:       database.NewAppointmentAdapter(pgClient, nil),
					DoctorAppointments: database.NewDoctorAppointmentAdapter(pgClient),
					StateChanges:       database.NewStateChangeAdapter(pgClient),
					Patients:           database.NewPatientAdapter(pgClient),
					Doctors:            database.NewDoctorAdapter(pgClient),
					Transactor:         database.NewTransactor(pgClient),
				},
				database.NewSequenceAdapter(pgClient),
				services.BookingOptions{
					SequenceCode: cfg.Booking.SequenceCode,
					Location:     cfg.Booking.Location(),
					PhoneRegion:  cfg.Booking.DefaultPhoneRegion,
				},
			).WithIndex(search.NewTypesenseAdapter(typesenseClient))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := reindexOnce(ctx, cmd, bookingService, batchSize); err != nil {
				return err
			}
			if interval <= 0 {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := reindexOnce(ctx, cmd, bookingService, batchSize); err != nil {
						log.Error().Err(err).Msg("reindex failed")
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "bookings fetched per page")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat at this interval (0 runs once)")

	return cmd
}

func reindexOnce(ctx context.Context, cmd *cobra.Command, bookingService *services.BookingService, batchSize int) error {
	start := time.Now()
	indexed, err := bookingService.Reindex(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("reindex stopped after %d booking(s): %w", indexed, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d booking(s) in %s\n", indexed, time.Since(start).Round(time.Millisecond))
	return nil
}
