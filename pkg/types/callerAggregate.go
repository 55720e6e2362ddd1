package types

// CallerAggregate accumulates statistics for one resolved caller. All
// counters are additive, so aggregates built from disjoint record sets can
// be merged in any order.
type CallerAggregate struct {
	Senders       map[string]uint64 `json:"senders" yaml:"senders"`
	Methods       map[string]uint64 `json:"methods" yaml:"methods"`
	FeeRecipients map[string]uint64 `json:"feeRecipients" yaml:"feeRecipients"`
	Makers        map[string]uint64 `json:"makers" yaml:"makers"`
	Caller        string            `json:"caller" yaml:"caller"`
	OrderCount    uint64            `json:"orderCount" yaml:"orderCount"`
	FillCount     uint64            `json:"fillCount" yaml:"fillCount"`
	UpdateCount   uint64            `json:"updateCount" yaml:"updateCount"`
}

func NewCallerAggregate(caller string) *CallerAggregate {
	return &CallerAggregate{
		Senders:       make(map[string]uint64),
		Methods:       make(map[string]uint64),
		FeeRecipients: make(map[string]uint64),
		Makers:        make(map[string]uint64),
		Caller:        caller,
	}
}

func (a *CallerAggregate) AddSender(sender string) {
	a.Senders[sender]++
}

// AddCall folds a single extracted call into the aggregate.
func (a *CallerAggregate) AddCall(call *ExtractedCall) {
	a.Methods[call.Id]++
	a.FillCount += call.Fills
	a.UpdateCount += call.Updates
	for _, order := range call.Orders {
		a.OrderCount++
		if feeRecipient := order.FeeRecipientAddress(); feeRecipient != "" {
			a.FeeRecipients[feeRecipient]++
		}
		if maker := order.MakerAddress(); maker != "" {
			a.Makers[maker]++
		}
	}
}

// Merge adds every counter of other into a.
func (a *CallerAggregate) Merge(other *CallerAggregate) {
	mergeCounts(a.Senders, other.Senders)
	mergeCounts(a.Methods, other.Methods)
	mergeCounts(a.FeeRecipients, other.FeeRecipients)
	mergeCounts(a.Makers, other.Makers)
	a.OrderCount += other.OrderCount
	a.FillCount += other.FillCount
	a.UpdateCount += other.UpdateCount
}

func (a *CallerAggregate) Clone() *CallerAggregate {
	c := NewCallerAggregate(a.Caller)
	c.Merge(a)
	return c
}

func mergeCounts(dst, src map[string]uint64) {
	for k, v := range src {
		dst[k] += v
	}
}
