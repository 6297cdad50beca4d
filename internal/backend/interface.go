package backend

import (
	"context"

	"birthdaymemo/internal/records"
	"birthdaymemo/internal/services"
)

// CleanupFunc releases the resources a backend opened.
type CleanupFunc func() error

// BackendResult is a ready record store plus the optional save notifier.
type BackendResult struct {
	Store     records.Store
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// json backend
	DataDirectory string

	// sqlite backend
	SQLiteDBPath string

	// Save notifications, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	JSONBackend   BackendType = "json"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
