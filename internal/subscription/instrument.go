package subscription

import (
	"context"

	"vpnmarket/internal/marzban"
	"vpnmarket/internal/metrics"
)

// InstrumentedPanel counts panel calls by operation and outcome.
type InstrumentedPanel struct {
	Next    Provisioner
	Metrics *metrics.Metrics
}

func (p *InstrumentedPanel) record(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.Metrics.PanelRequests.WithLabelValues(operation, status).Inc()
}

func (p *InstrumentedPanel) CreateUser(ctx context.Context, req marzban.CreateUserRequest) (*marzban.UserResponse, error) {
	user, err := p.Next.CreateUser(ctx, req)
	p.record("create_user", err)
	return user, err
}

func (p *InstrumentedPanel) GetUser(ctx context.Context, username string) (*marzban.UserResponse, error) {
	user, err := p.Next.GetUser(ctx, username)
	p.record("get_user", err)
	return user, err
}

func (p *InstrumentedPanel) DisableUser(ctx context.Context, username string) error {
	err := p.Next.DisableUser(ctx, username)
	p.record("disable_user", err)
	return err
}
