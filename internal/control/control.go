// Package control implements the one-shot control-plane signals the search
// loop drains at the top of each tick: manual rotation, forced execution,
// and revert. Transport is an optional NATS subscription, falling back to
// an in-process buffered channel when no NATS URL is configured.
package control

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Signals is the channel-based surface the search loop drains at tick top.
// A non-blocking receive on each channel is how the loop observes a
// one-shot signal without blocking the tick when none is pending.
type Signals struct {
	Rotate chan struct{}
	Force  chan struct{}
	Revert chan struct{}
}

// NewSignals builds a Signals with small buffered channels; a buffer of 1
// is sufficient since these are one-shot flags, not a queue.
func NewSignals() *Signals {
	return &Signals{
		Rotate: make(chan struct{}, 1),
		Force:  make(chan struct{}, 1),
		Revert: make(chan struct{}, 1),
	}
}

// Drain performs a non-blocking check of each signal, returning which ones
// were pending. Each pending signal is consumed (one-shot).
func (s *Signals) Drain() (rotate, force, revert bool) {
	select {
	case <-s.Rotate:
		rotate = true
	default:
	}
	select {
	case <-s.Force:
		force = true
	default:
	}
	select {
	case <-s.Revert:
		revert = true
	default:
	}
	return
}

const (
	subjectRotate = "arb.control.rotate"
	subjectForce  = "arb.control.force"
	subjectRevert = "arb.control.revert"
)

// NatsBridge forwards NATS publishes on the three control subjects into a
// Signals, so the search loop only ever reads from in-process channels.
type NatsBridge struct {
	conn *nats.Conn
	subs []*nats.Subscription
	log  zerolog.Logger
}

// Connect dials natsURL and subscribes the three control subjects into
// sig. Returns nil, nil if natsURL is empty — the caller keeps using sig
// purely as an in-process channel in that case.
func Connect(natsURL string, sig *Signals, log zerolog.Logger) (*NatsBridge, error) {
	if natsURL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS control plane: %w", err)
	}

	bridge := &NatsBridge{conn: conn, log: log.With().Str("component", "control_plane").Logger()}

	subscribe := func(subject string, target chan struct{}) error {
		sub, err := conn.Subscribe(subject, func(*nats.Msg) {
			select {
			case target <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		bridge.subs = append(bridge.subs, sub)
		return nil
	}

	if err := subscribe(subjectRotate, sig.Rotate); err != nil {
		conn.Close()
		return nil, err
	}
	if err := subscribe(subjectForce, sig.Force); err != nil {
		conn.Close()
		return nil, err
	}
	if err := subscribe(subjectRevert, sig.Revert); err != nil {
		conn.Close()
		return nil, err
	}

	bridge.log.Info().Str("nats_url", natsURL).Msg("control plane connected")
	return bridge, nil
}

// Close unsubscribes and closes the NATS connection.
func (b *NatsBridge) Close() {
	if b == nil {
		return
	}
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
