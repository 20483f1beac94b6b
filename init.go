package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/internal/commerce"
	"github.com/tournevent/fulfillment/internal/config"
	"github.com/tournevent/fulfillment/internal/jobs"
	"github.com/tournevent/fulfillment/internal/labels"
	"github.com/tournevent/fulfillment/internal/notify"
	"github.com/tournevent/fulfillment/internal/shipping"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/calendar"
	"github.com/tournevent/fulfillment/pkg/contact"
	"github.com/tournevent/fulfillment/pkg/pickup"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/dhl"
	"github.com/tournevent/fulfillment/pkg/shipper/manual"
	"github.com/tournevent/fulfillment/pkg/shipper/packlink"
	"github.com/tournevent/fulfillment/pkg/shipper/ups"
	"github.com/tournevent/fulfillment/pkg/shipper/wuunder"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// fulfillment records shipments in the database and on the sales platform.
type fulfillment struct {
	*store.Store
	*commerce.Client
}

var _ shipping.Fulfillment = fulfillment{}

type app struct {
	cfg          *config.Config
	logger       *otelzap.Logger
	registry     *shipper.Registry
	orchestrator *shipping.Orchestrator
	closers      []func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		a.closers = append(a.closers, tracerShutdown)
	}

	if err := a.wire(ctx, tracer); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, tracer trace.Tracer) error {
	cfg := a.cfg

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	st := store.New(db)
	if cfg.DatabaseAutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	labelStore, err := labels.New(ctx, cfg.LabelBucket, cfg.LabelPublicURL, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return labelStore.Close() })

	publisher, err := notify.New(notify.Config{
		Brokers:           cfg.KafkaBrokers,
		NotificationTopic: cfg.KafkaNotificationTopic,
		InvoiceTopic:      cfg.KafkaInvoiceTopic,
		ClientID:          cfg.ServiceName,
	}, otel.GetTracerProvider(), a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })

	scheduler, err := initScheduler(cfg)
	if err != nil {
		return err
	}

	a.registry = initShipperRegistry(cfg, carrierDeps{
		warehouses: st,
		labels:     labelStore,
		contacts:   initContacts(cfg),
		scheduler:  scheduler,
	}, a.logger, tracer)

	table, err := initRoutingTable(cfg)
	if err != nil {
		return err
	}

	resolver := shipper.NewResolver(table, a.registry)
	if skipped := resolver.Unregistered(); len(skipped) > 0 {
		a.logger.Warn("Routed carriers are not enabled and will be skipped", zap.Strings("carriers", skipped))
	}

	platform := commerce.New(commerce.Config{BaseURL: cfg.CommerceBaseURL, APIKey: cfg.CommerceAPIKey})
	a.orchestrator = shipping.New(shipping.Deps{
		Resolver:    resolver,
		Warehouses:  st,
		Fulfillment: fulfillment{Store: st, Client: platform},
		Eligibility: platform,
		Notifier:    publisher,
		Invoicer:    publisher,
	}, a.logger, telemetry.NewMetrics(nil), tracer)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

func initScheduler(cfg *config.Config) (*pickup.Scheduler, error) {
	categories := make([]calendar.Category, 0, len(cfg.HolidayCategories))
	for _, c := range cfg.HolidayCategories {
		cat, err := calendar.ParseCategory(c)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	extra, err := calendar.ParseExtra(cfg.HolidayExtra)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.PickupTimezone)
	if err != nil {
		return nil, fmt.Errorf("pickup timezone: %w", err)
	}

	holidays := calendar.New(calendar.WithCategories(categories...), calendar.WithExtra(extra...))
	return pickup.NewScheduler(holidays, pickup.WithLocation(loc)), nil
}

func initContacts(cfg *config.Config) *contact.Normalizer {
	return contact.NewNormalizer(contact.Phone{
		Number:      cfg.OrgPhoneNumber,
		CountryCode: cfg.OrgPhoneCountry,
		Extension:   cfg.OrgPhoneExtension,
	})
}

func initRoutingTable(cfg *config.Config) (*shipper.RoutingTable, error) {
	routes, err := shipper.ParseRoutes(cfg.Routes)
	if err != nil {
		return nil, err
	}
	return shipper.NewRoutingTable(routes...)
}

type carrierDeps struct {
	warehouses shipper.WarehouseData
	labels     shipper.LabelStore
	contacts   *contact.Normalizer
	scheduler  *pickup.Scheduler
}

func initShipperRegistry(cfg *config.Config, deps carrierDeps, logger *otelzap.Logger, tracer trace.Tracer) *shipper.Registry {
	registry := shipper.NewRegistry()

	if cfg.UPSEnabled {
		registry.Register(ups.New(ups.Config{
			AccessLicenseNumber: cfg.UPSAccessLicenseNumber,
			Username:            cfg.UPSUsername,
			Password:            cfg.UPSPassword,
			TransactionSrc:      cfg.UPSTransactionSrc,
			BaseURL:             cfg.UPSBaseURL,
			UseMock:             cfg.UPSUseMock,
			ServiceCode:         cfg.UPSServiceCode,
			ShipperName:         cfg.OrgName,
			TaxID:               cfg.OrgTaxID,
			ProcessedBy:         cfg.OrgShortName,
			UndeliverableMail:   cfg.OrgEmail,
		}, ups.Deps{
			Warehouses: deps.warehouses,
			Labels:     deps.labels,
			Contacts:   deps.contacts,
			Scheduler:  deps.scheduler,
		}, logger, tracer))
	}

	if cfg.DHLEnabled {
		registry.Register(dhl.New(dhl.Config{
			APIKey:      cfg.DHLAPIKey,
			BaseURL:     cfg.DHLBaseURL,
			UseMock:     cfg.DHLUseMock,
			Product:     cfg.DHLProduct,
			VATNumber:   cfg.DHLVATNumber,
			ProcessedBy: cfg.OrgShortName,
		}, dhl.Deps{
			Warehouses: deps.warehouses,
			Labels:     deps.labels,
			Contacts:   deps.contacts,
			Scheduler:  deps.scheduler,
		}, logger, tracer))
	}

	if cfg.WuunderEnabled {
		registry.Register(wuunder.New(wuunder.Config{
			APIKey:      cfg.WuunderAPIKey,
			BaseURL:     cfg.WuunderBaseURL,
			UseMock:     cfg.WuunderUseMock,
			WebhookURL:  cfg.WuunderWebhookURL,
			RedirectURL: cfg.WuunderRedirectURL,
			ProcessedBy: cfg.OrgShortName,
		}, wuunder.Deps{
			Warehouses: deps.warehouses,
			Contacts:   deps.contacts,
		}, logger, tracer))
	}

	if cfg.PacklinkEnabled {
		registry.Register(packlink.New(packlink.Config{
			APIKey:      cfg.PacklinkAPIKey,
			BaseURL:     cfg.PacklinkBaseURL,
			UseMock:     cfg.PacklinkUseMock,
			Source:      cfg.PacklinkSource,
			ProcessedBy: cfg.OrgShortName,
		}, packlink.Deps{
			Warehouses: deps.warehouses,
			Contacts:   deps.contacts,
		}, logger, tracer))
	}

	registry.Register(manual.New(cfg.OrgShortName))
	return registry
}

func initJobs(a *app) *jobs.Manager {
	return jobs.NewManager(jobs.Config{
		PickupSchedule:   a.cfg.PickupSchedule,
		TrackingSchedule: a.cfg.TrackingSchedule,
		PickupCarriers:   a.cfg.PickupCarriers,
		TrackingCarriers: a.cfg.TrackingCarriers,
		Timeout:          a.cfg.JobTimeout,
	}, a.orchestrator, a.logger)
}
