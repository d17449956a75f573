package model

// AlertKind names the kind of an AlertEvent.
type AlertKind string

const (
	AlertKindPercentageSwing AlertKind = "percentage_swing"
	AlertKindTargetHit       AlertKind = "target_hit"
)

// AlertEvent is produced and consumed within one cycle; it is never stored.
type AlertEvent interface {
	Kind() AlertKind
}

// PercentageSwing reports a rise of at least the configured threshold
// against the trailing-window baseline.
type PercentageSwing struct {
	TokenID            int64
	TokenName          string
	PercentageIncrease float64
	CurrentPrice       float64
	BasePrice          float64
}

func (PercentageSwing) Kind() AlertKind { return AlertKindPercentageSwing }

// TargetHit reports an exact match against a registered target price.
type TargetHit struct {
	TokenID     int64
	TokenName   string
	TargetPrice string
	Email       string
}

func (TargetHit) Kind() AlertKind { return AlertKindTargetHit }
