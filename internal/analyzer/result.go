package analyzer

// Result is the immutable terminal snapshot of one log analysis. The
// field names and nesting are a public contract consumed by the
// dashboard's report renderer.
type Result struct {
	// TotalGoogleVisits counts every matched crawler visit. The field
	// name predates multi-engine signatures and is kept for renderer
	// compatibility.
	TotalGoogleVisits int          `json:"totalGoogleVisits"`
	UniqueBots        int          `json:"uniqueBots"`
	Bots              []BotVisits  `json:"bots"`
	Errors            []ErrorTally `json:"errors"`
	DetailedAnalysis  Detailed     `json:"detailedAnalysis"`
}

// BotVisits aggregates everything seen for one crawler identity.
type BotVisits struct {
	BotName        string                `json:"botName"`
	UserAgent      string                `json:"userAgent"`
	Count          int                   `json:"count"`
	SampleLines    []string              `json:"sampleLines"`
	ErrorsByStatus map[int]*StatusErrors `json:"errorsByStatus"`
}

// StatusErrors tallies one error status within a bot.
type StatusErrors struct {
	Count       int      `json:"count"`
	SampleLines []string `json:"sampleLines"`
}

// ErrorTally is one (bot, status) entry in the global error list.
type ErrorTally struct {
	BotName     string   `json:"botName"`
	StatusCode  int      `json:"statusCode"`
	Count       int      `json:"count"`
	SampleLines []string `json:"sampleLines"`
}

// URLVisits aggregates crawler traffic for one query-stripped path.
type URLVisits struct {
	URL         string      `json:"url"`
	Count       int         `json:"count"`
	StatusCodes map[int]int `json:"statusCodes"`
	HasParams   bool        `json:"hasParams"`
	Depth       int         `json:"depth"`
	SampleLines []string    `json:"sampleLines"`
}

// Detailed is the nine-facet report.
type Detailed struct {
	Step1 Identification     `json:"step1"`
	Step2 VolumeUniqueness   `json:"step2"`
	Step3 TopURLs            `json:"step3"`
	Step4 CrawlBudget        `json:"step4"`
	Step5 StatusDistribution `json:"step5"`
	Step6 Redirects          `json:"step6"`
	Step7 DepthDistribution  `json:"step7"`
	Step8 ResponseTimes      `json:"step8"`
	Step9 TimeSeries         `json:"step9"`
}

// Identification reports how much of the file was crawler traffic.
type Identification struct {
	TotalLines         int     `json:"totalLines"`
	MatchedVisits      int     `json:"matchedVisits"`
	IdentificationRate float64 `json:"identificationRate"`
	VerifiedVisits     int     `json:"verifiedVisits"`
	UnverifiedVisits   int     `json:"unverifiedVisits"`
}

// VolumeUniqueness reports visit volume against URL uniqueness.
type VolumeUniqueness struct {
	TotalVisits       int     `json:"totalVisits"`
	UniqueURLs        int     `json:"uniqueUrls"`
	AvgRequestsPerURL float64 `json:"avgRequestsPerUrl"`
}

// TopURLs lists the twenty most-crawled paths.
type TopURLs struct {
	URLs []URLVisits `json:"urls"`
}

// CrawlBudget reports how visits split across the budget buckets.
type CrawlBudget struct {
	Canonical  int `json:"canonical"`
	WithParams int `json:"withParams"`
	Pagination int `json:"pagination"`
	Service    int `json:"service"`
	NotFound   int `json:"notFound"`
}

// StatusDistribution carries the fixed status buckets.
type StatusDistribution struct {
	Status200   int `json:"status200"`
	Status301   int `json:"status301"`
	Status302   int `json:"status302"`
	Status308   int `json:"status308"`
	Status404   int `json:"status404"`
	Status410   int `json:"status410"`
	Status403   int `json:"status403"`
	Status401   int `json:"status401"`
	Status5xx   int `json:"status5xx"`
	StatusOther int `json:"statusOther"`
}

// Redirects summarizes redirect traffic. Chains are not correlated.
type Redirects struct {
	TotalRedirects int         `json:"totalRedirects"`
	RedirectTypes  map[int]int `json:"redirectTypes"`
}

// DepthDistribution buckets visits by URL depth.
type DepthDistribution struct {
	Depth0     int `json:"depth0"`
	Depth1     int `json:"depth1"`
	Depth2     int `json:"depth2"`
	Depth3     int `json:"depth3"`
	Depth4     int `json:"depth4"`
	Depth5Plus int `json:"depth5plus"`
}

// ResponseTimes summarizes the response-time samples. Avg and Max are
// nil (absent, not zero) when no sample was extracted.
type ResponseTimes struct {
	TimingDataAvailable bool     `json:"timingDataAvailable"`
	AvgResponseTimeMs   *float64 `json:"avgResponseTimeMs,omitempty"`
	MaxResponseTimeMs   *float64 `json:"maxResponseTimeMs,omitempty"`
	SampleCount         int      `json:"sampleCount"`
}

// TimeSeries carries hourly and daily visit counts.
type TimeSeries struct {
	Hourly [24]int        `json:"hourly"`
	Daily  map[string]int `json:"daily"`
}
