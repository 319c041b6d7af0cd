package caller

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"gopkg.in/yaml.v3"
)

// defaultHighRiskCountries is the built-in risk policy: region codes with
// historically high telecom-fraud volume. The set is data, not logic — a
// deployment overrides it with a YAML policy file.
var defaultHighRiskCountries = []string{
	"BD", "CN", "GH", "IN", "JM", "MX", "NG", "PH", "PK", "VN",
}

// Policy is the swappable high-risk-country set consulted during
// classification.
type Policy struct {
	countries map[string]struct{}
}

// DefaultPolicy returns the built-in high-risk-country set.
func DefaultPolicy() Policy {
	return NewPolicy(defaultHighRiskCountries)
}

// NewPolicy builds a policy from region codes (ISO 3166-1 alpha-2).
func NewPolicy(regions []string) Policy {
	set := make(map[string]struct{}, len(regions))
	for _, region := range regions {
		normalized := strings.ToUpper(strings.TrimSpace(region))
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return Policy{countries: set}
}

// LoadPolicy reads a YAML policy file of the form:
//
//	high_risk_countries:
//	  - MX
//	  - NG
func LoadPolicy(path string) (Policy, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read risk policy: %w", err)
	}
	var doc struct {
		HighRiskCountries []string `yaml:"high_risk_countries"`
	}
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return Policy{}, fmt.Errorf("parse risk policy: %w", err)
	}
	if len(doc.HighRiskCountries) == 0 {
		return Policy{}, fmt.Errorf("risk policy lists no countries")
	}
	return NewPolicy(doc.HighRiskCountries), nil
}

// HighRisk reports whether the region code is in the policy set.
func (p Policy) HighRisk(region string) bool {
	if p.countries == nil {
		return false
	}
	_, ok := p.countries[strings.ToUpper(strings.TrimSpace(region))]
	return ok
}

// Regions returns the policy's region codes, sorted.
func (p Policy) Regions() []string {
	regions := make([]string, 0, len(p.countries))
	for region := range p.countries {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// Classifier normalizes raw caller numbers and tags them with coarse risk
// metadata. Classification is best-effort enrichment: it never fails, it only
// degrades to an empty Identity.
type Classifier struct {
	policy Policy
	logger *slog.Logger
}

func NewClassifier(log *slog.Logger, policy Policy) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		policy: policy,
		logger: log.With(slog.String("component", "caller")),
	}
}

// Classify parses raw into a normalized Identity using region as the default
// country of record ("" means US). Unparseable input, including the empty
// string, returns the zero Identity.
func (c *Classifier) Classify(raw, region string) Identity {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{}
	}
	defaultRegion := strings.ToUpper(strings.TrimSpace(region))
	if defaultRegion == "" {
		defaultRegion = DefaultRegion
	}
	parsed, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("caller parse failed", slog.String("region", defaultRegion), slog.Any("error", err))
		}
		return Identity{}
	}
	country := phonenumbers.GetRegionCodeForNumber(parsed)
	if country == "" || country == phonenumbers.UNKNOWN_REGION {
		// Numbers that fail strict validation still carry a usable calling
		// code; fall back to the calling code's main region.
		country = phonenumbers.GetRegionCodeForCountryCode(int(parsed.GetCountryCode()))
		if country == phonenumbers.UNKNOWN_REGION {
			country = ""
		}
	}
	return Identity{
		Raw:             raw,
		E164:            phonenumbers.Format(parsed, phonenumbers.E164),
		Country:         country,
		CallingCode:     strconv.Itoa(int(parsed.GetCountryCode())),
		HighRiskCountry: c.policy.HighRisk(country),
	}
}
