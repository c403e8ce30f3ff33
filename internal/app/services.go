package app

import (
	"medcore/internal/core/tx"
	"medcore/internal/core/types"
	"medcore/internal/domain/catalogs/product"
	"medcore/internal/domain/catalogs/uom"
	"medcore/internal/domain/documents/invoice"
	"medcore/internal/domain/documents/payment"
	"medcore/internal/domain/ledger"
	"medcore/internal/domain/notification"
	"medcore/internal/domain/posting"
	"medcore/internal/domain/pricing"
	"medcore/internal/domain/registers/batch"
	"medcore/internal/domain/reports"
	"medcore/internal/domain/settings"
	"medcore/internal/infrastructure/config"
)

// Services are the domain services over one backend.
type Services struct {
	Products  *product.Service
	Units     *uom.Engine
	Stock     *batch.Service
	Policy    *pricing.Policy
	Poster    *ledger.Poster
	Engine    *posting.Engine
	Documents *invoice.Service
	Payments  *payment.Service
	Settings  *settings.Resolver
	Reports   *reports.Service

	// Dispatcher delivers events in memory mode; nil when an outbox is used.
	Dispatcher *notification.AsyncDispatcher
}

// NewServices builds the services. sender receives events in memory mode;
// nil falls back to notification.LogSender.
func NewServices(b *Backend, cfg *config.Config, sender notification.Sender) (*Services, error) {
	policy, err := pricing.NewPolicy(cfg.Pricing)
	if err != nil {
		return nil, err
	}

	s := &Services{Policy: policy}
	s.Products = product.NewService(b.Products)
	s.Units = uom.NewEngine(b.Conversions, s.Products)
	s.Stock = batch.NewService(b.Batches, b.TxManager, s.Products, policy)
	s.Poster = ledger.NewPoster(b.Ledger)
	s.Settings = settings.NewResolver(b.Settings, cfg.GlobalSettings())

	s.Engine = posting.NewEngine(b.TxManager, s.Stock, s.Poster)
	if b.Outbox != nil {
		s.Engine.WithOutbox(b.Outbox)
	} else {
		if sender == nil {
			sender = notification.LogSender{}
		}
		s.Dispatcher = notification.NewAsyncDispatcher(sender, cfg.Notification.QueueSize, cfg.Notification.Workers)
		s.Engine.WithDispatcher(s.Dispatcher)
	}

	s.Documents = invoice.NewService(invoice.Deps{
		Repo:      b.Documents,
		TxManager: b.TxManager,
		Products:  s.Products,
		Units:     s.Units,
		Numerator: b.Numerator,
		Settings:  s.Settings,
		Engine:    s.Engine,
	})
	if cfg.Alerts.LowStock != "" {
		threshold, err := types.ParseDecimal("alerts.low_stock", cfg.Alerts.LowStock)
		if err != nil {
			return nil, err
		}
		NewLowStockAlert(s.Products, s.Stock, threshold, nil).Register(s.Documents.Hooks())
	}
	s.Payments = payment.NewService(b.Payments, b.Documents, b.TxManager, b.Numerator, s.Engine, s.Poster)
	s.Reports = reports.NewService(s.Products, s.Stock, s.Documents)
	if ro, ok := b.TxManager.(tx.ReadOnlyManager); ok {
		s.Reports.WithSnapshot(ro)
	}
	return s, nil
}

// Close drains the in-process dispatcher.
func (s *Services) Close() {
	if s.Dispatcher != nil {
		s.Dispatcher.Close()
	}
}
