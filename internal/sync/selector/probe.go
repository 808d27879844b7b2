package selector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/proxysync/internal/db"
)

const (
	defaultProbeTimeout = 3 * time.Second
	isPrimarySQL        = `SELECT NOT pg_is_in_recovery()`
)

// Prober is a MemberSource that asks every configured member whether it
// is in recovery. Members that cannot be reached are reported with Err set.
type Prober struct {
	dialer  db.Dialer
	members []db.Endpoint
	timeout time.Duration
}

var _ MemberSource = (*Prober)(nil)

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithProbeTimeout bounds each member probe
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewProber creates a prober over a static member list
func NewProber(dialer db.Dialer, members []db.Endpoint, opts ...ProberOption) *Prober {
	p := &Prober{
		dialer:  dialer,
		members: members,
		timeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Members probes every member in configuration order
func (p *Prober) Members(ctx context.Context, _ string) ([]Member, error) {
	out := make([]Member, 0, len(p.members))
	for _, ep := range p.members {
		primary, err := p.probe(ctx, ep)
		if err != nil {
			slog.Debug("Member probe failed", "member", ep.String(), "error", err)
		}
		out = append(out, Member{Endpoint: ep, Primary: primary, Err: err})
	}
	return out, nil
}

func (p *Prober) probe(ctx context.Context, ep db.Endpoint) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.Dial(probeCtx, ep)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = conn.Close(context.WithoutCancel(ctx))
	}()

	var primary bool
	if err := conn.QueryRow(probeCtx, isPrimarySQL).Scan(&primary); err != nil {
		return false, fmt.Errorf("failed to query role of %s: %w", ep, err)
	}
	return primary, nil
}
