// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
)

// DocumentWriter persists a complaint document in the document store.
// Implemented by the Elasticsearch adapter.
type DocumentWriter interface {
	IndexDocument(ctx context.Context, doc map[string]any) error
}

// CustomerDetail is the section of the accounts backend response the
// pipeline cares about.
type CustomerDetail struct {
	CustomerName string
	Accounts     []BackendAccount
}

// BackendAccount mirrors one entry of the accounts backend's accountList.
type BackendAccount struct {
	AgencyCode    string
	AccountNumber string
	Suffix        string
	CurrencyCode  string
}

// CustomerResolver fetches customer details from the account-resolution
// backend by client number or phone number.
type CustomerResolver interface {
	ResolveByClientNumber(ctx context.Context, clientNumber string) (*CustomerDetail, error)
	ResolveByPhone(ctx context.Context, phone string) (*CustomerDetail, error)
}

// Notifier delivers a copy of the final document to a secondary consumer
// (best-effort, after the store write succeeded).
type Notifier interface {
	Notify(ctx context.Context, doc map[string]any) error
}

// AccountsFetcher is the client-side view of the gateway's lookup
// passthrough, consumed by the lookup state machine.
type AccountsFetcher interface {
	GetAccounts(ctx context.Context, query domain.LookupQuery) ([]domain.Account, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
