package sms

import "regexp"

// Pattern recognizes one provider notification format. Expr must define the
// named groups "amount" and "recipient"; "txid" and "date" are optional.
type Pattern struct {
	Name string
	Expr *regexp.Regexp
}

const (
	groupAmount    = "amount"
	groupRecipient = "recipient"
	groupTxID      = "txid"
	groupDate      = "date"
)

// DateLayout is the timestamp format carried by the notifications.
const DateLayout = "2006-01-02 15:04:05"

// DefaultPatterns returns the built-in formats in match order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name: "merchant_payment",
			Expr: regexp.MustCompile(`(?i)TxId:(?P<txid>\d+)\*S\*Your payment of (?P<amount>[\d,]+(?:\.\d+)?) RWF to (?P<recipient>.+?) was completed at (?P<date>[\d\-: ]+)`),
		},
		{
			Name: "p2p_transfer",
			Expr: regexp.MustCompile(`(?i)\*165\*S\*(?P<amount>[\d,]+(?:\.\d+)?) RWF transferred to (?P<recipient>.+?) at (?P<date>[\d\-: ]+)`),
		},
	}
}

func group(p Pattern, m []string, name string) string {
	i := p.Expr.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}
