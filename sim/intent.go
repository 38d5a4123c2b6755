package sim

import "fmt"

// IntentKind is what the sizer asks the engine to do on a bar.
type IntentKind uint8

const (
	IntentNone IntentKind = iota
	IntentOpen
	IntentAdd
	IntentClose
)

func (k IntentKind) String() string {
	switch k {
	case IntentOpen:
		return "open"
	case IntentAdd:
		return "add"
	case IntentClose:
		return "close"
	default:
		return "none"
	}
}

// Reasons attached to intents and carried into the trade log.
const (
	ReasonSignal       = "signal"
	ReasonFlip         = "flip"
	ReasonAdd          = "martingale_add"
	ReasonTakeProfit   = "take_profit"
	ReasonSessionClose = "session_close"
)

// Intent is one order decision. Side is only read for opens and Size only
// for opens and adds.
type Intent struct {
	Kind   IntentKind
	Side   Side
	Size   float64
	Reason string
}

func OpenIntent(side Side, size float64, reason string) Intent {
	return Intent{Kind: IntentOpen, Side: side, Size: size, Reason: reason}
}

func AddIntent(size float64, reason string) Intent {
	return Intent{Kind: IntentAdd, Size: size, Reason: reason}
}

func CloseIntent(reason string) Intent {
	return Intent{Kind: IntentClose, Reason: reason}
}

func (in Intent) String() string {
	switch in.Kind {
	case IntentOpen:
		return fmt.Sprintf("open %s %g", in.Side, in.Size)
	case IntentAdd:
		return fmt.Sprintf("add %g", in.Size)
	default:
		return in.Kind.String()
	}
}
