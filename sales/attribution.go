package sales

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CHANNEL
// =============================================================================

// Channel is the acquisition channel of a payment.
type Channel string

const (
	ChannelDirect   Channel = "direct"
	ChannelComments Channel = "comments"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every channel in display order.
var Channels = []Channel{ChannelDirect, ChannelComments, ChannelWhatsApp}

// =============================================================================
// LEAD INDEX
// =============================================================================

// LeadIndex maps normalized chat handles to their channel.
type LeadIndex map[string]Channel

// NewLeadIndex builds the lookup from leads. A handle seen at least once as a
// comment stays ChannelComments even when a later record for the same handle
// says otherwise.
func NewLeadIndex(leads []Lead) LeadIndex {
	idx := make(LeadIndex, len(leads))
	for _, l := range leads {
		h := NormalizeHandle(l.ChatHandle)
		if h == "" {
			continue
		}
		if l.IsComment != nil && *l.IsComment {
			idx[h] = ChannelComments
			continue
		}
		if _, seen := idx[h]; !seen {
			idx[h] = ChannelDirect
		}
	}
	return idx
}

// =============================================================================
// ATTRIBUTION
// =============================================================================

// Attribute classifies one payment. Phone-like handles are WhatsApp; known
// handles take their lead channel; everything else, including empty and
// unmatched handles, counts as direct traffic.
func (idx LeadIndex) Attribute(p Payment) Channel {
	if p.IsPhoneLike() {
		return ChannelWhatsApp
	}
	h := p.NormalizedHandle()
	if h == "" {
		return ChannelDirect
	}
	if src, ok := idx[h]; ok {
		return src
	}
	return ChannelDirect
}

// AttributedPayment is a payment with its channel.
type AttributedPayment struct {
	Payment
	Source Channel
}

// AttributeAll classifies every payment. The input slice is not modified.
func AttributeAll(payments []Payment, leads []Lead) []AttributedPayment {
	idx := NewLeadIndex(leads)
	out := make([]AttributedPayment, len(payments))
	for i, p := range payments {
		out[i] = AttributedPayment{Payment: p, Source: idx.Attribute(p)}
	}
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

// SourceStats aggregates one channel.
type SourceStats struct {
	Source  Channel
	Count   int
	Revenue decimal.Decimal
}

// AttributionSummary holds per-channel totals. The counts always add up to
// Total.
type AttributionSummary struct {
	Total    int
	BySource []SourceStats
}

// Summarize counts attributed payments per channel.
func Summarize(attributed []AttributedPayment) AttributionSummary {
	stats := make(map[Channel]*SourceStats, len(Channels))
	for _, s := range Channels {
		stats[s] = &SourceStats{Source: s, Revenue: decimal.Zero}
	}
	for _, ap := range attributed {
		st := stats[ap.Source]
		st.Count++
		st.Revenue = st.Revenue.Add(ap.Amount)
	}

	summary := AttributionSummary{Total: len(attributed)}
	for _, s := range Channels {
		summary.BySource = append(summary.BySource, *stats[s])
	}
	return summary
}
