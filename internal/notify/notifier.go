// Package notify delivers human-facing messages over WhatsApp.  The
// booking engine and sweeper emit notification intents through the
// booking.Notifier interface; this package fans them out to the
// subject and to every configured operator.  Delivery is best-effort:
// a failed send is logged and never propagated, so a notification
// problem cannot roll back a completed state transition.
package notify

import (
	"context"
	"log"
)

// Sender sends one message to one recipient.  The Twilio client
// implements it; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// OperatorDirectory resolves the current set of operator handles.
// Looked up per fan-out so activating or deactivating an operator
// takes effect without a restart.
type OperatorDirectory interface {
	ActivePhones(ctx context.Context) ([]string, error)
}

// staticDirectory serves a fixed operator list from configuration.
type staticDirectory []string

func (d staticDirectory) ActivePhones(context.Context) ([]string, error) { return d, nil }

// StaticOperators wraps a configured operator list as a directory.
func StaticOperators(phones []string) OperatorDirectory { return staticDirectory(phones) }

// mergedDirectory unions several directories, de-duplicating handles.
// A failing member is skipped so one bad source cannot silence the
// others.
type mergedDirectory []OperatorDirectory

func (m mergedDirectory) ActivePhones(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range m {
		phones, err := d.ActivePhones(ctx)
		if err != nil {
			log.Printf("notify: directory lookup: %v", err)
			continue
		}
		for _, p := range phones {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out, nil
}

// MergeDirectories combines directories, typically the operators
// table with a static list from configuration.
func MergeDirectories(dirs ...OperatorDirectory) OperatorDirectory { return mergedDirectory(dirs) }

// Notifier implements booking.Notifier on top of a Sender.
type Notifier struct {
	sender    Sender
	operators OperatorDirectory
}

// New wires a Notifier.  operators may be nil when no operator
// fan-out is configured.
func New(sender Sender, operators OperatorDirectory) *Notifier {
	return &Notifier{sender: sender, operators: operators}
}

// NotifySubject sends one message to the counterparty.
func (n *Notifier) NotifySubject(ctx context.Context, subject, text string) {
	if err := n.sender.Send(ctx, subject, text); err != nil {
		log.Printf("notify: send to %s: %v", subject, err)
	}
}

// NotifyOperators fans a message out to every active operator.  Each
// recipient is attempted independently; one failing number never
// short-circuits the rest of the list.
func (n *Notifier) NotifyOperators(ctx context.Context, text string) {
	if n.operators == nil {
		return
	}
	phones, err := n.operators.ActivePhones(ctx)
	if err != nil {
		log.Printf("notify: resolve operators: %v", err)
		return
	}
	for _, phone := range phones {
		if err := n.sender.Send(ctx, phone, text); err != nil {
			log.Printf("notify: send to operator %s: %v", phone, err)
		}
	}
}
