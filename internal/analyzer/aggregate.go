package analyzer

import (
	"strings"

	"github.com/sigmetapp/seohqs-sub000/internal/botsig"
	"github.com/sigmetapp/seohqs-sub000/internal/classify"
	"github.com/sigmetapp/seohqs-sub000/internal/logparse"
)

// caps bounds per-entity memory during a scan so report completeness is
// uniform no matter how many distinct bots or URLs appear.
type caps struct {
	botSamples   int
	urlSamples   int
	errorSamples int
	sampleChars  int
}

type errorKey struct {
	bot    string
	status int
}

// aggregator owns every running tally for one scan. It is threaded
// explicitly through the scan and never shared across analyses.
type aggregator struct {
	caps caps

	totalLines  int
	totalVisits int
	verified    int
	unverified  int

	bots   map[string]*BotVisits // keyed by lower-cased bot name
	urls   map[string]*URLVisits // keyed by query-stripped path
	errors map[errorKey]*ErrorTally

	status     StatusDistribution
	budget     CrawlBudget
	depth      DepthDistribution
	redirects  map[int]int
	redirTotal int

	hourly    [24]int
	daily     map[string]int
	rtSamples []float64
}

func newAggregator(c caps) *aggregator {
	return &aggregator{
		caps:      c,
		bots:      make(map[string]*BotVisits),
		urls:      make(map[string]*URLVisits),
		errors:    make(map[errorKey]*ErrorTally),
		redirects: make(map[int]int),
		daily:     make(map[string]int),
	}
}

// update applies one matched line to every tally, in the fixed order
// the report depends on. Missing optional fields skip their step.
func (a *aggregator) update(match botsig.Match, fields logparse.Fields, line string) {
	sample := truncate(line, a.caps.sampleChars)

	a.totalVisits++
	if match.Verified {
		a.verified++
	} else {
		a.unverified++
	}

	a.updateBot(match, sample)
	a.updateURL(fields, sample)
	a.updateStatus(fields)
	a.updateTime(fields)

	if fields.ResponseTimeMs != nil {
		a.rtSamples = append(a.rtSamples, *fields.ResponseTimeMs)
	}
	if fields.StatusCode != nil && *fields.StatusCode >= 400 && *fields.StatusCode < 600 {
		a.updateErrors(match.BotName, *fields.StatusCode, sample)
	}
}

func (a *aggregator) updateBot(match botsig.Match, sample string) {
	key := strings.ToLower(match.BotName)
	bot := a.bots[key]
	if bot == nil {
		bot = &BotVisits{
			BotName:        match.BotName,
			UserAgent:      match.UserAgent,
			SampleLines:    []string{},
			ErrorsByStatus: make(map[int]*StatusErrors),
		}
		a.bots[key] = bot
	}
	bot.Count++
	if len(bot.SampleLines) < a.caps.botSamples {
		bot.SampleLines = append(bot.SampleLines, sample)
	}
}

func (a *aggregator) updateURL(fields logparse.Fields, sample string) {
	if fields.URL == nil {
		return
	}
	path, hasParams := logparse.SplitQuery(*fields.URL)
	u := a.urls[path]
	if u == nil {
		u = &URLVisits{
			URL:         path,
			StatusCodes: make(map[int]int),
			HasParams:   hasParams,
			Depth:       classify.Depth(path),
			SampleLines: []string{},
		}
		a.urls[path] = u
	}
	u.Count++
	if hasParams {
		u.HasParams = true
	}
	if fields.StatusCode != nil {
		u.StatusCodes[*fields.StatusCode]++
	}
	if len(u.SampleLines) < a.caps.urlSamples {
		u.SampleLines = append(u.SampleLines, sample)
	}

	a.bumpDepth(u.Depth)
	a.bumpBudget(classify.Classify(*fields.URL, fields.StatusCode))
}

func (a *aggregator) bumpDepth(depth int) {
	switch depth {
	case 0:
		a.depth.Depth0++
	case 1:
		a.depth.Depth1++
	case 2:
		a.depth.Depth2++
	case 3:
		a.depth.Depth3++
	case 4:
		a.depth.Depth4++
	default:
		a.depth.Depth5Plus++
	}
}

func (a *aggregator) bumpBudget(bucket classify.Bucket) {
	switch bucket {
	case classify.BucketCanonical:
		a.budget.Canonical++
	case classify.BucketWithParams:
		a.budget.WithParams++
	case classify.BucketPagination:
		a.budget.Pagination++
	case classify.BucketService:
		a.budget.Service++
	case classify.BucketNotFound:
		a.budget.NotFound++
	}
}

func (a *aggregator) updateStatus(fields logparse.Fields) {
	if fields.StatusCode == nil {
		return
	}
	code := *fields.StatusCode
	switch {
	case code == 200:
		a.status.Status200++
	case code == 301:
		a.status.Status301++
	case code == 302:
		a.status.Status302++
	case code == 308:
		a.status.Status308++
	case code == 404:
		a.status.Status404++
	case code == 410:
		a.status.Status410++
	case code == 403:
		a.status.Status403++
	case code == 401:
		a.status.Status401++
	case code >= 500 && code < 600:
		a.status.Status5xx++
	default:
		a.status.StatusOther++
	}
	if code == 301 || code == 302 || code == 308 {
		a.redirects[code]++
		a.redirTotal++
	}
}

func (a *aggregator) updateTime(fields logparse.Fields) {
	if fields.Hour != nil && *fields.Hour >= 0 && *fields.Hour < 24 {
		a.hourly[*fields.Hour]++
	}
	if fields.Day != nil {
		a.daily[*fields.Day]++
	}
}

// updateErrors maintains the global error list and the bot-local view
// in lockstep, so the report can answer "errors by bot" and "errors
// overall" without a second pass.
func (a *aggregator) updateErrors(botName string, code int, sample string) {
	key := errorKey{bot: strings.ToLower(botName), status: code}
	tally := a.errors[key]
	if tally == nil {
		tally = &ErrorTally{
			BotName:     botName,
			StatusCode:  code,
			SampleLines: []string{},
		}
		a.errors[key] = tally
	}
	tally.Count++
	if len(tally.SampleLines) < a.caps.errorSamples {
		tally.SampleLines = append(tally.SampleLines, sample)
	}

	if bot := a.bots[strings.ToLower(botName)]; bot != nil {
		se := bot.ErrorsByStatus[code]
		if se == nil {
			se = &StatusErrors{SampleLines: []string{}}
			bot.ErrorsByStatus[code] = se
		}
		se.Count++
		if len(se.SampleLines) < a.caps.errorSamples {
			se.SampleLines = append(se.SampleLines, sample)
		}
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
