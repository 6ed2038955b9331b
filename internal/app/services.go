package app

import (
	"fmt"

	"fieldledger/internal/config"
	"fieldledger/internal/domain/catalog"
	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
	"fieldledger/pkg/numerator"
)

// Extras are the optional collaborators. Zero values disable them.
type Extras struct {
	CatalogCache catalog.Cache
	Locker       invoice.Locker
	Observer     invoice.Observer
	OnFallback   func(reason string)
}

// Services are the domain services exposed over HTTP.
type Services struct {
	Invoices *invoice.Service
	Stock    *stock.Service
	Catalogs *catalog.Service
}

// DefaultCatalog loads the configured default catalog, or the built-in one.
func DefaultCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.DefaultFile == "" {
		return catalog.Builtin(), nil
	}
	return catalog.LoadFile(cfg.DefaultFile)
}

// NewServices builds the domain services on top of st.
func NewServices(cfg *config.Config, st *Storage, extras Extras) (*Services, error) {
	fallback, err := DefaultCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}

	var opts []catalog.Option
	if extras.CatalogCache != nil {
		opts = append(opts, catalog.WithCache(extras.CatalogCache))
	}
	if extras.OnFallback != nil {
		opts = append(opts, catalog.WithFallbackHook(extras.OnFallback))
	}
	catalogs := catalog.NewService(st.Catalogs, fallback, opts...)

	prefix := cfg.Ledger.NumberPrefix
	if prefix == "" {
		prefix = "INV"
	}
	numbers := numerator.NewGenerator(
		numerator.New(st.Sequences),
		numerator.DefaultConfig(prefix),
		numerator.DefaultOptions(),
	)

	invoices := invoice.NewService(invoice.Deps{
		Stocks:    st.Stocks,
		Ledger:    st.Ledger,
		Invoices:  st.Invoices,
		Tickets:   st.Tickets,
		Events:    st.Events,
		Audit:     st.Audit,
		Catalogs:  catalogs,
		Numbers:   numbers,
		Locker:    extras.Locker,
		Observer:  extras.Observer,
		TxManager: st.TxManager,
	}, invoice.Config{
		MaxAttempts:     cfg.Ledger.MaxAttempts,
		RetryBackoff:    cfg.Ledger.RetryBackoff,
		MaxBackoff:      cfg.Ledger.MaxBackoff,
		CommentTemplate: cfg.Ledger.CommentTemplate,
	})

	return &Services{
		Invoices: invoices,
		Stock:    stock.NewService(st.Stocks, st.Ledger),
		Catalogs: catalogs,
	}, nil
}
