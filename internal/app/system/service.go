package system

import "context"

// Service is a component with a managed lifecycle. The manager starts
// services in registration order and stops them in reverse, so background
// workers and schedulers implement this to hook into process startup and
// shutdown.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for components without background work.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                   { return n.ServiceName }
func (n NoopService) Start(context.Context) error    { return nil }
func (n NoopService) Stop(ctx context.Context) error { return nil }
