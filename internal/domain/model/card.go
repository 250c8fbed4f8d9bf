package model

import "strings"

// CardData carries raw card input from checkout to the gateway adapter and
// nowhere else: it is never persisted and both String and MarshalJSON redact
// it, so an accidental log or audit write cannot leak the PAN.
type CardData struct {
	Number       string
	HolderName   string
	ExpMonth     int
	ExpYear      int
	CVV          string
	Installments int
}

func (c CardData) String() string {
	return "card(****" + c.Last4() + ")"
}

func (c CardData) MarshalJSON() ([]byte, error) {
	return []byte(`"card(****` + c.Last4() + `)"`), nil
}

func (c CardData) Last4() string {
	d := digits(c.Number)
	if len(d) < 4 {
		return ""
	}
	return d[len(d)-4:]
}

// Brand detects the card scheme from the leading digits. Unknown prefixes
// return "card".
func (c CardData) Brand() string {
	d := digits(c.Number)
	switch {
	case strings.HasPrefix(d, "4"):
		return "visa"
	case len(d) >= 2 && d[0] == '5' && d[1] >= '1' && d[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(d, "34") || strings.HasPrefix(d, "37"):
		return "amex"
	case strings.HasPrefix(d, "606282"):
		return "hipercard"
	}
	return "card"
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
