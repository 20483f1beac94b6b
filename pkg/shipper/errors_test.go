package shipper_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError("UPS", "120100", "Missing shipper number")
	assert.Equal(t, "UPS error (120100): Missing shipper number", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewShipperError("DHL", "TRANSPORT", "request failed").WithCause(cause)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "network timeout")
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_Is(t *testing.T) {
	err1 := shipper.NewShipperError("UPS", "NO_ACCOUNT", "no account for NL")
	err2 := shipper.NewShipperError("DHL", "NO_ACCOUNT", "no account for DE")
	err3 := shipper.NewShipperError("UPS", "TRANSPORT", "request failed")

	assert.True(t, errors.Is(err1, err2), "same code should match")
	assert.False(t, errors.Is(err1, err3))
}

func TestShipperError_IsCarrierRequestFailed(t *testing.T) {
	err := fmt.Errorf("creating shipment: %w", shipper.NewShipperError("UPS", "HTTP_500", "boom"))
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)
	assert.NotErrorIs(t, err, shipper.ErrValidation)
}

func TestShipperError_StatusSentinels(t *testing.T) {
	unavailable := shipper.NewShipperError("DHL", "HTTP_503", "maintenance").WithStatusCode(503)
	limited := fmt.Errorf("posting pickups: %w", shipper.NewShipperError("UPS", "HTTP_429", "slow down").WithStatusCode(429))
	failed := shipper.NewShipperError("UPS", "HTTP_500", "boom").WithStatusCode(500)

	assert.ErrorIs(t, unavailable, shipper.ErrServiceUnavailable)
	assert.NotErrorIs(t, unavailable, shipper.ErrRateLimitExceeded)
	assert.ErrorIs(t, limited, shipper.ErrRateLimitExceeded)
	assert.ErrorIs(t, limited, shipper.ErrCarrierRequestFailed)
	assert.NotErrorIs(t, failed, shipper.ErrServiceUnavailable)
	assert.NotErrorIs(t, failed, shipper.ErrRateLimitExceeded)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable carrier error", shipper.NewShipperError("UPS", "HTTP_503", "down").WithRetryable(true), true},
		{"permanent carrier error", shipper.NewShipperError("UPS", "120100", "bad").WithRetryable(false), false},
		{"service unavailable", shipper.ErrServiceUnavailable, true},
		{"rate limit", fmt.Errorf("wrapped: %w", shipper.ErrRateLimitExceeded), true},
		{"validation", shipper.ErrValidation, false},
		{"route", shipper.ErrNoCarrierForRoute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shipper.IsRetryable(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	_, err := shipper.NewShipmentDocument(shipper.Fields{})
	require.Error(t, err)

	var vErr *shipper.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "order_id", vErr.Field)
	assert.ErrorIs(t, err, shipper.ErrValidation)
	assert.Equal(t, "validation failed: order_id is required", err.Error())
}

func TestRouteError(t *testing.T) {
	err := &shipper.RouteError{
		RequestType:   shipper.RequestShipment,
		Carrier:       "DHL",
		Preference:    shipper.PreferenceExplicit,
		OriginCountry: "US",
		Err:           shipper.ErrCarrierNotSupportedForRoute,
	}
	assert.ErrorIs(t, err, shipper.ErrCarrierNotSupportedForRoute)
	assert.Equal(t, `carrier not supported for route: explicit carrier "DHL" from "US"`, err.Error())

	unregistered := &shipper.RouteError{Carrier: "UPS", OriginCountry: "NL", Err: shipper.ErrUnsupportedCarrier}
	assert.Equal(t, `unsupported carrier: carrier "UPS" from "NL"`, unregistered.Error())

	noCarrier := &shipper.RouteError{OriginCountry: "XX", Err: shipper.ErrNoCarrierForRoute}
	assert.Equal(t, `no carrier for route: origin "XX"`, noCarrier.Error())
}
