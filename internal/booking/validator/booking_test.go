package validator

import (
	"strings"
	"testing"
	"time"

	"meistro/pkg/logger"
	"meistro/pkg/model"
)

func testValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Service: "test"}))
}

func validBooking() *model.Booking {
	b := &model.Booking{
		ListingID:       "listing-1",
		ProviderID:      "provider-1",
		CustomerID:      "customer-1",
		StartTime:       time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
		Status:          model.StatusRequested,
	}
	b.ComputeEndTime()
	return b
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(b *model.Booking)
		wantErr string
	}{
		{"valid booking", func(b *model.Booking) {}, ""},
		{
			"past start time rejected",
			func(b *model.Booking) {
				b.StartTime = time.Now().Add(-time.Hour)
				b.ComputeEndTime()
			},
			"start_time cannot be in the past",
		},
		{
			"end not after start",
			func(b *model.Booking) { b.EndTime = b.StartTime },
			"end_time must be after start_time",
		},
		{
			"provider booking own listing",
			func(b *model.Booking) { b.CustomerID = b.ProviderID },
			"provider cannot book their own listing",
		},
		{
			"unknown status",
			func(b *model.Booking) { b.Status = "archived" },
			"Status must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := validBooking()
			tt.mutate(booking)

			err := testValidator().Validate(booking)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateRequest_GuestContactDetails(t *testing.T) {
	req := &model.BookingRequest{
		ListingID:       "listing-1",
		ProviderID:      "provider-1",
		StartTime:       time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		DurationMinutes: 30,
	}

	err := testValidator().ValidateRequest(req)
	if err == nil {
		t.Fatal("expected guest request without contact details to fail")
	}
	for _, want := range []string{"contact_name is required", "contact_phone is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error containing %q, got %v", want, err)
		}
	}
}
