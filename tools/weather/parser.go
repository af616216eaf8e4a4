package weather

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-pinyin"
)

var (
	futureDaysRe = regexp.MustCompile(`未来\s*(\d+)\s*天`)
	nextDaysRe   = regexp.MustCompile(`(?i)next\s+(\d+)\s+days?`)
	timeWordsRe  = regexp.MustCompile(`(天气|查询|查看|想知道|告诉我|的|怎么样|如何|未来|今天|明天|后天|\d+天|一周|会|吗|呢|下雨|下雪)`)
	cjkCityRe    = regexp.MustCompile(`([\x{4e00}-\x{9fa5}]{2,4})`)
	latinCityRe  = regexp.MustCompile(`(?i)(?:in|for|at)\s+([A-Z][a-zA-Z]+)`)
)

// ParseQuery extracts the city name and number of forecast days from free
// form user text. Days range from 1 (today) to MaxForecastDays. An empty
// city means the text did not name one.
func ParseQuery(text string) (city string, days int) {
	days = 1
	switch {
	case strings.Contains(text, "明天") || strings.Contains(strings.ToLower(text), "tomorrow"):
		days = 2
	case strings.Contains(text, "后天"):
		days = 3
	case strings.Contains(text, "未来"):
		days = MaxForecastDays
		if m := futureDaysRe.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n < MaxForecastDays {
				days = n
			}
		}
	}
	if m := nextDaysRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			days = n
			if days > MaxForecastDays {
				days = MaxForecastDays
			}
		}
	}
	if days < 1 {
		days = 1
	}

	// Strip time words so they do not interfere with city extraction.
	clean := timeWordsRe.ReplaceAllString(text, "")
	if m := cjkCityRe.FindStringSubmatch(clean); m != nil {
		return m[1], days
	}
	if m := latinCityRe.FindStringSubmatch(text); m != nil {
		return m[1], days
	}
	return "", days
}

var citySuffixes = []string{"市", "县", "区"}

// TransliterateCity converts a CJK city name into the latin form the
// weather API expects. Latin input passes through unchanged.
func TransliterateCity(city string) string {
	for _, suffix := range citySuffixes {
		city = strings.TrimSuffix(city, suffix)
	}
	if !cjkCityRe.MatchString(city) {
		return city
	}
	parts := pinyin.LazyPinyin(city, pinyin.NewArgs())
	if len(parts) == 0 {
		return city
	}
	joined := strings.Join(parts, "")
	return strings.ToUpper(joined[:1]) + joined[1:]
}
