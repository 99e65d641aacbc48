package evidence

import "strings"

// Default credibility allowlists. Tier 1 is checked first, then tier 2;
// everything else is tier 3.
var (
	defaultTier1Domains = []string{
		"nytimes.com",
		"wsj.com",
		"washingtonpost.com",
		"bbc.com",
		"cnn.com",
		"forbes.com",
		"bloomberg.com",
		"reuters.com",
		"espn.com",
		"theguardian.com",
		"ft.com",
		"wikipedia.org",
	}

	defaultTier2Domains = []string{
		"sherdog.com",
		"mmafighting.com",
		"mmajunkie.com",
		"tapology.com",
		"fightmatrix.com",
	}
)

// Classifier maps a domain to a credibility tier by allowlist membership.
type Classifier struct {
	tier1 []string
	tier2 []string
}

// NewClassifier builds a Classifier. Empty lists fall back to the defaults.
func NewClassifier(tier1, tier2 []string) *Classifier {
	if len(tier1) == 0 {
		tier1 = defaultTier1Domains
	}
	if len(tier2) == 0 {
		tier2 = defaultTier2Domains
	}
	return &Classifier{tier1: tier1, tier2: tier2}
}

// Tier returns 1, 2, or 3 for the given hostname.
func (c *Classifier) Tier(domain string) int {
	d := strings.ToLower(domain)
	for _, m := range c.tier1 {
		if strings.Contains(d, m) {
			return 1
		}
	}
	for _, m := range c.tier2 {
		if strings.Contains(d, m) {
			return 2
		}
	}
	return 3
}
