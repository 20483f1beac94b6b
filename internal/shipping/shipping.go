// Package shipping orchestrates shipment creation, pickup cycles and
// tracking cycles on top of the carrier adapters in pkg/shipper.
package shipping

import (
	"context"
	"fmt"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Fulfillment records created shipments in the order backend.
type Fulfillment interface {
	AddToFulfillment(ctx context.Context, result shipper.ShipmentResult) (int64, error)
	AddToFulfilledLines(ctx context.Context, lines []shipper.FulfillmentLine, fulfillmentID int64) error
	FulfillOnPlatform(ctx context.Context, orderID string, fulfillmentID int64) error
}

// Eligibility answers whether an order may be shipped and invoiced.
type Eligibility interface {
	CanCreateShipment(ctx context.Context, platformOrderID, storeID, orderID string, lines []shipper.FulfillmentLine) (bool, error)
	CanInvoiceAndNotify(ctx context.Context, orderID string, lines []shipper.FulfillmentLine) (bool, error)
}

// NotificationKind selects the dealer mail template.
type NotificationKind string

const (
	NotifyLabel                   NotificationKind = "LABEL"
	NotifyLabelWithoutPackingSlip NotificationKind = "LABEL_WITHOUT_PACKINGSLIP"
)

// Notifier sends dealer notifications.
type Notifier interface {
	SendDealerNotification(ctx context.Context, kind NotificationKind, locationID, orderID string, fulfillmentID int64) error
}

// Invoicer turns concept invoices into paid ones.
type Invoicer interface {
	ConvertConceptToPaid(ctx context.Context, orderID string, fulfillmentID int64, platformOrderID, storeID string) error
}

// State is a step of an orchestrated operation.
type State string

const (
	StateValidating State = "validating"
	StateResolving  State = "resolving"
	StateExecuting  State = "executing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Post-processing steps.
const (
	StepAddToFulfillment    = "add_to_fulfillment"
	StepAddToFulfilledLines = "add_to_fulfilled_lines"
	StepFulfillOnPlatform   = "fulfill_on_platform"
	StepInvoiceEligibility  = "invoice_eligibility"
	StepNotifyAndInvoice    = "notify_and_invoice"
)

// Outcome is the result of a shipment creation.
type Outcome struct {
	Result        shipper.ShipmentResult
	FulfillmentID int64
	// Notification is the dealer notification sent, empty when none was.
	Notification NotificationKind
	Invoiced     bool
}

// PostProcessingError reports a failure after the carrier accepted the
// shipment. The shipment exists; only the named step failed.
type PostProcessingError struct {
	Step          string
	OrderID       string
	FulfillmentID int64
	Cause         error
}

func (e *PostProcessingError) Error() string {
	return fmt.Sprintf("%v: order %s step %s: %v", shipper.ErrPostProcessingFailed, e.OrderID, e.Step, e.Cause)
}

// Unwrap returns the sentinel and the cause.
func (e *PostProcessingError) Unwrap() []error {
	return []error{shipper.ErrPostProcessingFailed, e.Cause}
}
