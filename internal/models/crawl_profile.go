package models

// CrawlProfile is the set of crawl settings sent to the provider when
// enabling a site audit. Profiles ship as YAML files loaded into the KV
// store at startup; the provider reads the named profile and falls back to
// these defaults when none is configured.
type CrawlProfile struct {
	Name              string   `yaml:"-" json:"name"`
	PageLimit         int      `yaml:"page_limit" json:"page_limit"`
	UserAgentType     int      `yaml:"user_agent_type" json:"user_agent_type"`
	CrawlSubdomains   bool     `yaml:"crawl_subdomains" json:"crawl_subdomains"`
	RespectCrawlDelay bool     `yaml:"respect_crawl_delay" json:"respect_crawl_delay"`
	Notify            bool     `yaml:"notify" json:"notify"`
	ScheduleDay       int      `yaml:"schedule_day" json:"schedule_day"`
	Allow             []string `yaml:"allow" json:"allow"`
	Disallow          []string `yaml:"disallow" json:"disallow"`
	RemovedParameters []string `yaml:"removed_parameters" json:"removed_parameters"`
}

const (
	// DefaultCrawlProfileName is the profile used when a client has no
	// explicit profile configured.
	DefaultCrawlProfileName = "default"

	// DefaultPageLimit caps a site audit crawl when no profile sets one.
	DefaultPageLimit = 1000
)

// DefaultCrawlProfile returns the audit settings used when no profile file
// was loaded: a full-site crawl capped at the given page limit with a
// desktop user agent.
func DefaultCrawlProfile(pageLimit int) *CrawlProfile {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &CrawlProfile{
		Name:              DefaultCrawlProfileName,
		PageLimit:         pageLimit,
		UserAgentType:     2,
		CrawlSubdomains:   true,
		RespectCrawlDelay: false,
		Notify:            true,
		ScheduleDay:       0,
		Allow:             []string{},
		Disallow:          []string{},
		RemovedParameters: []string{},
	}
}
