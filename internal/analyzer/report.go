package analyzer

import "sort"

// finalize folds the aggregation state into an immutable Result. It is
// a pure function of the aggregator: calling it twice on the same state
// yields identical output, and it never mutates the tallies.
func (a *aggregator) finalize() *Result {
	res := &Result{
		TotalGoogleVisits: a.totalVisits,
		UniqueBots:        len(a.bots),
		Bots:              a.sortedBots(),
		Errors:            a.sortedErrors(),
	}

	res.DetailedAnalysis = Detailed{
		Step1: Identification{
			TotalLines:         a.totalLines,
			MatchedVisits:      a.totalVisits,
			IdentificationRate: ratio(a.totalVisits, a.totalLines),
			VerifiedVisits:     a.verified,
			UnverifiedVisits:   a.unverified,
		},
		Step2: VolumeUniqueness{
			TotalVisits:       a.totalVisits,
			UniqueURLs:        len(a.urls),
			AvgRequestsPerURL: avgPerURL(a.urls),
		},
		Step3: TopURLs{URLs: a.topURLs(20)},
		Step4: a.budget,
		Step5: a.status,
		Step6: Redirects{
			TotalRedirects: a.redirTotal,
			RedirectTypes:  copyIntMap(a.redirects),
		},
		Step7: a.depth,
		Step8: a.responseTimes(),
		Step9: TimeSeries{
			Hourly: a.hourly,
			Daily:  copyIntMapS(a.daily),
		},
	}
	return res
}

// sortedBots returns bot aggregates by count descending, name ascending
// on ties so output is deterministic.
func (a *aggregator) sortedBots() []BotVisits {
	bots := make([]BotVisits, 0, len(a.bots))
	for _, b := range a.bots {
		bots = append(bots, cloneBot(b))
	}
	sort.Slice(bots, func(i, j int) bool {
		if bots[i].Count != bots[j].Count {
			return bots[i].Count > bots[j].Count
		}
		return bots[i].BotName < bots[j].BotName
	})
	return bots
}

// sortedErrors returns the global error list by status ascending, then
// count descending, then bot name for determinism.
func (a *aggregator) sortedErrors() []ErrorTally {
	errs := make([]ErrorTally, 0, len(a.errors))
	for _, e := range a.errors {
		errs = append(errs, cloneError(e))
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].StatusCode != errs[j].StatusCode {
			return errs[i].StatusCode < errs[j].StatusCode
		}
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].BotName < errs[j].BotName
	})
	return errs
}

func (a *aggregator) topURLs(n int) []URLVisits {
	urls := make([]URLVisits, 0, len(a.urls))
	for _, u := range a.urls {
		urls = append(urls, cloneURL(u))
	}
	sort.Slice(urls, func(i, j int) bool {
		if urls[i].Count != urls[j].Count {
			return urls[i].Count > urls[j].Count
		}
		return urls[i].URL < urls[j].URL
	})
	if len(urls) > n {
		urls = urls[:n]
	}
	return urls
}

func (a *aggregator) responseTimes() ResponseTimes {
	rt := ResponseTimes{SampleCount: len(a.rtSamples)}
	if len(a.rtSamples) == 0 {
		return rt
	}
	rt.TimingDataAvailable = true
	sum := 0.0
	max := a.rtSamples[0]
	for _, v := range a.rtSamples {
		sum += v
		if v > max {
			max = v
		}
	}
	avg := sum / float64(len(a.rtSamples))
	rt.AvgResponseTimeMs = &avg
	rt.MaxResponseTimeMs = &max
	return rt
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func avgPerURL(urls map[string]*URLVisits) float64 {
	if len(urls) == 0 {
		return 0
	}
	total := 0
	for _, u := range urls {
		total += u.Count
	}
	return float64(total) / float64(len(urls))
}

func cloneBot(b *BotVisits) BotVisits {
	out := *b
	out.SampleLines = append([]string(nil), b.SampleLines...)
	out.ErrorsByStatus = make(map[int]*StatusErrors, len(b.ErrorsByStatus))
	for code, se := range b.ErrorsByStatus {
		cp := StatusErrors{
			Count:       se.Count,
			SampleLines: append([]string(nil), se.SampleLines...),
		}
		out.ErrorsByStatus[code] = &cp
	}
	return out
}

func cloneError(e *ErrorTally) ErrorTally {
	out := *e
	out.SampleLines = append([]string(nil), e.SampleLines...)
	return out
}

func cloneURL(u *URLVisits) URLVisits {
	out := *u
	out.SampleLines = append([]string(nil), u.SampleLines...)
	out.StatusCodes = copyIntMap(u.StatusCodes)
	return out
}

func copyIntMap(in map[int]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIntMapS(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
