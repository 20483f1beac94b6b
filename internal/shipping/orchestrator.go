package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/pickup"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Operation names used in logs and metrics.
const (
	OpCreateShipment  = "create_shipment"
	OpRequestPickups  = "request_pickups"
	OpUpdateShipments = "update_shipments"
	OpPacklinkLabels  = "packlink_labels"
)

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Resolver    *shipper.Resolver
	Warehouses  shipper.WarehouseData
	Fulfillment Fulfillment
	Eligibility Eligibility
	Notifier    Notifier
	Invoicer    Invoicer
}

// Orchestrator runs shipment, pickup and tracking operations end to end.
type Orchestrator struct {
	deps    Deps
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates an orchestrator. A nil tracer disables tracing.
func New(deps Deps, logger *otelzap.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Orchestrator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("shipping")
	}
	return &Orchestrator{
		deps:    deps,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Routes returns the routing table used for carrier resolution.
func (o *Orchestrator) Routes() []shipper.Route {
	return o.deps.Resolver.Table().Routes()
}

// run tracks the state of one operation for logs, metrics and its span.
type run struct {
	o         *Orchestrator
	ctx       context.Context
	span      trace.Span
	operation string
	carrier   string
	start     time.Time
}

func (o *Orchestrator) begin(ctx context.Context, operation string) (*run, context.Context) {
	ctx, span := o.tracer.Start(ctx, "shipping."+operation)
	r := &run{o: o, ctx: ctx, span: span, operation: operation, start: time.Now()}
	r.enter(StateValidating)
	return r, ctx
}

func (r *run) enter(s State) {
	r.o.logger.Ctx(r.ctx).Debug("Operation state",
		zap.String("operation", r.operation),
		zap.String("state", string(s)),
		zap.String("carrier", r.carrier),
	)
	r.o.metrics.RecordState(r.operation, string(s))
}

func (r *run) resolved(carrier string) {
	r.carrier = carrier
	r.span.SetAttributes(attribute.String("carrier", carrier))
}

// end closes the run. A PostProcessingError still completes the operation.
func (r *run) end(err error) {
	defer r.span.End()

	status := "success"
	state := StateCompleted
	var post *PostProcessingError
	switch {
	case err == nil:
	case errors.As(err, &post):
		status = "partial"
		r.span.RecordError(err)
	default:
		status = "error"
		state = StateFailed
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		r.o.logger.Ctx(r.ctx).Error("Operation failed",
			zap.String("operation", r.operation),
			zap.String("carrier", r.carrier),
			zap.Error(err),
		)
	}
	r.enter(state)

	carrier := r.carrier
	if carrier == "" {
		carrier = "none"
	}
	r.o.metrics.RecordRequest(r.operation, carrier, status, time.Since(r.start).Seconds())
}

func (o *Orchestrator) resolve(r *run, doc shipper.Document) (shipper.Adapter, error) {
	r.enter(StateResolving)
	req := doc.RouteRequest()

	adapter, err := o.deps.Resolver.Resolve(doc)
	if err != nil {
		o.metrics.RecordResolution(string(req.Type), req.Carrier, errorType(err))
		return nil, err
	}
	r.resolved(adapter.Carrier())
	o.metrics.RecordResolution(string(req.Type), adapter.Carrier(), "resolved")
	return adapter, nil
}

// CreateShipment validates fields, books the shipment with the resolved
// carrier and runs post-processing. When post-processing fails the outcome
// is returned together with a *PostProcessingError.
func (o *Orchestrator) CreateShipment(ctx context.Context, fields shipper.Fields) (outcome *Outcome, err error) {
	r, ctx := o.begin(ctx, OpCreateShipment)
	defer func() { r.end(err) }()

	doc, err := shipper.NewShipmentDocument(fields)
	if err != nil {
		return nil, err
	}
	logger := o.logger.Ctx(ctx).WithOptions(zap.Fields(zap.String("order_id", doc.OrderID)))
	r.span.SetAttributes(attribute.String("order_id", doc.OrderID))

	adapter, err := o.resolve(r, doc)
	if err != nil {
		return nil, err
	}

	ok, err := o.deps.Eligibility.CanCreateShipment(ctx, doc.PlatformOrderID, doc.StoreID, doc.OrderID, doc.Lines)
	if err != nil {
		return nil, fmt.Errorf("checking shipment eligibility: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s", shipper.ErrNotEligible, doc.OrderID)
	}

	r.enter(StateExecuting)
	result, err := adapter.CreateShipment(ctx)
	if err != nil {
		o.recordCarrierError(adapter.Carrier(), err)
		return nil, err
	}
	logger.Info("Shipment created",
		zap.String("carrier", result.ShippingProvider),
		zap.String("tracking_number", result.TrackingNumber),
		zap.Bool("has_callback", result.HasCallback),
	)

	outcome = &Outcome{Result: result}
	postErr := func(step string, cause error) error {
		logger.Error("Shipment post-processing failed",
			zap.String("step", step),
			zap.Int64("fulfillment_id", outcome.FulfillmentID),
			zap.Error(cause),
		)
		return &PostProcessingError{Step: step, OrderID: doc.OrderID, FulfillmentID: outcome.FulfillmentID, Cause: cause}
	}

	outcome.FulfillmentID, err = o.deps.Fulfillment.AddToFulfillment(ctx, result)
	if err != nil {
		return outcome, postErr(StepAddToFulfillment, err)
	}
	if err := o.deps.Fulfillment.AddToFulfilledLines(ctx, doc.Lines, outcome.FulfillmentID); err != nil {
		return outcome, postErr(StepAddToFulfilledLines, err)
	}

	// Callback carriers and manual shipments are completed elsewhere.
	if result.HasCallback || result.ShippingProvider == shipper.CarrierManual {
		return outcome, nil
	}

	if err := o.deps.Fulfillment.FulfillOnPlatform(ctx, doc.OrderID, outcome.FulfillmentID); err != nil {
		return outcome, postErr(StepFulfillOnPlatform, err)
	}

	invoice, err := o.deps.Eligibility.CanInvoiceAndNotify(ctx, doc.OrderID, doc.Lines)
	if err != nil {
		return outcome, postErr(StepInvoiceEligibility, err)
	}

	if !invoice {
		outcome.Notification = NotifyLabelWithoutPackingSlip
		if err := o.deps.Notifier.SendDealerNotification(ctx, outcome.Notification, doc.WarehouseID, doc.OrderID, outcome.FulfillmentID); err != nil {
			outcome.Notification = ""
			return outcome, postErr(StepNotifyAndInvoice, err)
		}
		return outcome, nil
	}

	var errs []error
	if err := o.deps.Notifier.SendDealerNotification(ctx, NotifyLabel, doc.WarehouseID, doc.OrderID, outcome.FulfillmentID); err != nil {
		errs = append(errs, fmt.Errorf("dealer notification: %w", err))
	} else {
		outcome.Notification = NotifyLabel
	}
	if err := o.deps.Invoicer.ConvertConceptToPaid(ctx, doc.OrderID, outcome.FulfillmentID, doc.PlatformOrderID, doc.StoreID); err != nil {
		errs = append(errs, fmt.Errorf("invoice: %w", err))
	} else {
		outcome.Invoiced = true
	}
	if len(errs) > 0 {
		return outcome, postErr(StepNotifyAndInvoice, errors.Join(errs...))
	}
	return outcome, nil
}

// RequestPickups books pickups for every pending pickup request of the
// carrier named in fields. One confirmation is returned per location.
func (o *Orchestrator) RequestPickups(ctx context.Context, fields shipper.Fields) (confs []shipper.PickupConfirmation, err error) {
	r, ctx := o.begin(ctx, OpRequestPickups)
	defer func() { r.end(err) }()

	doc, err := shipper.NewDocument(shipper.RequestPickup, fields)
	if err != nil {
		return nil, err
	}
	adapter, err := o.resolve(r, doc)
	if err != nil {
		return nil, err
	}

	r.enter(StateExecuting)
	pending, err := o.deps.Warehouses.PendingPickups(ctx, adapter.Carrier())
	if err != nil {
		return nil, fmt.Errorf("loading pending pickups: %w", err)
	}
	batches := pickup.Consolidate(pending)

	logger := o.logger.Ctx(ctx)
	logger.Info("Requesting pickups",
		zap.String("carrier", adapter.Carrier()),
		zap.Int("requests", len(pending)),
		zap.Int("locations", len(batches)),
	)
	if len(batches) == 0 {
		return nil, nil
	}

	confs, err = adapter.PostPickups(ctx, batches)
	if err != nil {
		o.recordCarrierError(adapter.Carrier(), err)
		return confs, err
	}

	failed := 0
	for _, c := range confs {
		if c.Err != nil {
			failed++
			o.recordCarrierError(adapter.Carrier(), c.Err)
			o.metrics.RecordPickupBatch(adapter.Carrier(), "error")
			continue
		}
		o.metrics.RecordPickupBatch(adapter.Carrier(), "booked")
	}
	logger.Info("Pickups requested",
		zap.String("carrier", adapter.Carrier()),
		zap.Int("booked", len(confs)-failed),
		zap.Int("failed", failed),
	)
	return confs, nil
}

// UpdateShipments refreshes the tracking state of every pending shipment of
// the carrier named in fields. Per-record failures are returned joined.
func (o *Orchestrator) UpdateShipments(ctx context.Context, fields shipper.Fields) (err error) {
	r, ctx := o.begin(ctx, OpUpdateShipments)
	defer func() { r.end(err) }()

	doc, err := shipper.NewDocument(shipper.RequestUpdate, fields)
	if err != nil {
		return err
	}
	adapter, err := o.resolve(r, doc)
	if err != nil {
		return err
	}

	r.enter(StateExecuting)
	records, err := o.deps.Warehouses.PendingTrackingUpdates(ctx, adapter.Carrier())
	if err != nil {
		return fmt.Errorf("loading pending tracking updates: %w", err)
	}
	o.logger.Ctx(ctx).Info("Updating track and trace",
		zap.String("carrier", adapter.Carrier()),
		zap.Int("records", len(records)),
	)
	if len(records) == 0 {
		return nil
	}

	if err := adapter.UpdateTrackAndTrace(ctx, records); err != nil {
		o.recordCarrierError(adapter.Carrier(), err)
		return err
	}
	return nil
}

// LabelSource is implemented by carriers whose labels are fetched after
// the shipment was booked.
type LabelSource interface {
	Labels(ctx context.Context, reference string) ([]string, error)
}

// PacklinkLabels returns the label URLs of the Packlink shipment with the
// given reference.
func (o *Orchestrator) PacklinkLabels(ctx context.Context, reference string) (urls []string, err error) {
	r, ctx := o.begin(ctx, OpPacklinkLabels)
	defer func() { r.end(err) }()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, &shipper.ValidationError{Field: "reference", Reason: "is required"}
	}

	r.enter(StateResolving)
	s, err := o.deps.Resolver.Shipper(shipper.CarrierPacklink)
	if err != nil {
		return nil, err
	}
	r.resolved(s.Name())
	source, ok := s.(LabelSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not serve labels", shipper.ErrUnsupportedOperation, s.Name())
	}

	r.enter(StateExecuting)
	urls, err = source.Labels(ctx, reference)
	if err != nil {
		o.recordCarrierError(s.Name(), err)
		return nil, err
	}
	return urls, nil
}

func (o *Orchestrator) recordCarrierError(carrier string, err error) {
	o.metrics.RecordError(carrier, errorType(err))
}

// errorType maps err to a low-cardinality metric label.
func errorType(err error) string {
	var shipperErr *shipper.ShipperError
	switch {
	case errors.As(err, &shipperErr):
		return shipperErr.Code
	case errors.Is(err, shipper.ErrValidation):
		return "validation"
	case errors.Is(err, shipper.ErrUnsupportedCarrier):
		return "unsupported_carrier"
	case errors.Is(err, shipper.ErrCarrierNotSupportedForRoute):
		return "carrier_not_supported_for_route"
	case errors.Is(err, shipper.ErrNoCarrierForRoute):
		return "no_carrier_for_route"
	case errors.Is(err, shipper.ErrSchedulingFailure):
		return "scheduling"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "context"
	default:
		return "other"
	}
}
