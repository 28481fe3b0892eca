package rewards

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by core operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one ledger or redemption operation.
type OperationLog struct {
	Operation string
	UserID    string
	RequestID string
	Points    Points
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithProfileRetry overrides the replication-lag retry policy used when a
// just-created profile is not yet visible.
func WithProfileRetry(policy RetryPolicy) ServiceOption {
	return func(service *Service) {
		service.retry = policy
	}
}
