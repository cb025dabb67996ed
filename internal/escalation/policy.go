package escalation

import (
	"Flort/internal/feature"
	"Flort/internal/model"
	"Flort/internal/status"
)

// Policy decides when a bot conversation must be handed to a human
type Policy struct {
	// UnansweredThreshold is the number of trailing user messages without a reply that triggers
	// a transfer. Zero disables automatic transfer.
	UnansweredThreshold int
	gate                *feature.Gate
}

func NewPolicy(threshold int, gate *feature.Gate) Policy {
	return Policy{UnansweredThreshold: threshold, gate: gate}
}

// TrailingUnanswered counts user messages after the last bot or admin message, in time order
func TrailingUnanswered(messages []model.Message) int {
	sorted := status.SortMessages(messages)
	n := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Sender != model.SenderUser {
			break
		}
		n++
	}
	return n
}

// ShouldEscalate reports whether a conversation currently at loc with these messages must move
// to live chat. Only bot conversations are ever escalated.
func (p Policy) ShouldEscalate(loc model.Location, messages []model.Message) bool {
	if p.UnansweredThreshold <= 0 || loc != model.LocationBot {
		return false
	}
	if !p.gate.IsEnabled(feature.EscalationAutoTransfer) {
		return false
	}
	return TrailingUnanswered(messages) >= p.UnansweredThreshold
}
