package conversion

import (
	"mediaconv/internal/derivative"
	"mediaconv/internal/queue"
)

// Disposition classifies what EvaluateAndEnqueue did.
type Disposition string

const (
	DispositionEnqueued           Disposition = "enqueued"
	DispositionAlreadyQueued      Disposition = "already_queued"
	DispositionNotRequired        Disposition = "not_required"
	DispositionEncoderUnavailable Disposition = "encoder_unavailable"
	DispositionNoProfile          Disposition = "no_profile"
)

// Outcome is the result of an evaluate-and-enqueue call. Item is set for
// enqueued and already-queued outcomes.
type Outcome struct {
	Disposition Disposition
	Reason      derivative.Reason
	Item        *queue.Item
}

// Queued reports whether work for the pair is now waiting or processing.
func (o Outcome) Queued() bool {
	return o.Disposition == DispositionEnqueued || o.Disposition == DispositionAlreadyQueued
}
