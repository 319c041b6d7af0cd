package caller

// Identity is the normalized view of an inbound caller number. It is derived
// purely from the raw input plus the region of record; unparseable input yields
// the zero Identity rather than an error.
type Identity struct {
	Raw             string `json:"raw,omitempty"`
	E164            string `json:"e164,omitempty"`
	Country         string `json:"country,omitempty"`
	CallingCode     string `json:"calling_code,omitempty"`
	HighRiskCountry bool   `json:"high_risk_country"`
}

// Empty reports whether classification produced nothing usable.
func (i Identity) Empty() bool {
	return i.E164 == ""
}

const DefaultRegion = "US"
