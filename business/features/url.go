package features

import (
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"phishSentinel/business/ensemble"
)

var commonTLDs = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "edu": {}, "gov": {}, "info": {}, "io": {}, "co": {},
}

var brandList = []string{
	"google", "facebook", "apple", "amazon", "microsoft", "paypal", "bank", "yahoo",
	"instagram", "linkedin", "twitter", "github", "dropbox", "adobe", "netflix",
	"whatsapp", "tiktok", "snapchat", "reddit", "ebay", "wellsfargo", "chase", "boa",
	"hsbc", "citi", "capitalone", "americanexpress", "discover", "samsung", "icloud",
	"outlook", "office", "mail", "gmail", "hotmail", "aol", "yandex", "baidu", "alibaba",
	"jd", "weibo", "wechat", "taobao", "tmall", "bing", "duckduckgo", "live",
	"skype", "slack", "zoom", "airbnb", "booking", "expedia", "uber", "lyft", "doordash",
	"grubhub", "stripe", "square", "venmo", "coinbase", "binance", "kraken", "robinhood",
	"etrade", "fidelity", "vanguard", "tdameritrade", "schwab", "sofi", "mint", "intuit",
	"turbotax", "hulu", "spotify", "pandora", "soundcloud", "imdb", "pinterest", "quora",
	"tumblr", "wordpress", "blogger", "medium", "wikipedia", "wikimedia",
}

// URL feature names, in the order the url model was trained on.
const (
	URLLength          = "url_length"
	PathDepth          = "path_depth"
	NumSubdomains      = "num_subdomains"
	NumSpecialChars    = "num_special_chars"
	NumDigits          = "num_digits"
	NumHyphens         = "num_hyphens"
	HasAtSymbol        = "has_at_symbol"
	NumQueryParams     = "num_query_params"
	DigitRatio         = "digit_ratio"
	URLEntropy         = "url_entropy"
	HasHTTPS           = "has_https"
	LevenshteinToBrand = "levenshtein_to_brand"
	UncommonTLD        = "uncommon_tld"
	URLTokenCount      = "url_token_count"
)

// ExtractURL computes the url model features for raw. It returns false when
// raw is not an absolute URL, in which case the navigation is not scored.
func ExtractURL(raw string) (ensemble.FeatureVector, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ensemble.FeatureVector{}, false
	}

	fv := ensemble.NewFeatureVector(14)
	length := utf8.RuneCountInString(raw)

	var special, digits, hyphens int
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			special++
			if r == '-' {
				hyphens++
			}
		}
	}

	domain := strings.ToLower(u.Hostname())
	parts := strings.Split(domain, ".")
	subdomains := len(parts) - 2
	if strings.Contains(domain, "www") {
		subdomains = len(parts) - 3
	}

	tld := ""
	label := domain
	if len(parts) > 1 {
		tld = parts[len(parts)-1]
		label = parts[len(parts)-2]
	}
	_, common := commonTLDs[tld]

	fv.Set(URLLength, float64(length))
	fv.Set(PathDepth, float64(countNonEmpty(strings.Split(u.EscapedPath(), "/"))))
	fv.Set(NumSubdomains, float64(subdomains))
	fv.Set(NumSpecialChars, float64(special))
	fv.Set(NumDigits, float64(digits))
	fv.Set(NumHyphens, float64(hyphens))
	fv.SetBool(HasAtSymbol, strings.Contains(raw, "@"))
	fv.Set(NumQueryParams, float64(countNonEmpty(strings.Split(u.RawQuery, "&"))))
	if length > 0 {
		fv.Set(DigitRatio, float64(digits)/float64(length))
	} else {
		fv.Set(DigitRatio, 0)
	}
	fv.Set(URLEntropy, shannonEntropy(raw))
	fv.SetBool(HasHTTPS, strings.EqualFold(u.Scheme, "https"))
	fv.Set(LevenshteinToBrand, float64(minBrandDistance(label)))
	fv.SetBool(UncommonTLD, !common)
	fv.Set(URLTokenCount, float64(countNonEmpty(strings.FieldsFunc(raw, isTokenSeparator))))

	return fv, true
}

func isTokenSeparator(r rune) bool {
	switch r {
	case '/', '_', '-', '?', '=', '&':
		return true
	}
	return false
}

func countNonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if p != "" {
			n++
		}
	}
	return n
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	entropy := 0.0
	for _, c := range freq {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func minBrandDistance(s string) int {
	best := math.MaxInt
	for _, b := range brandList {
		if d := levenshtein(s, b); d < best {
			best = d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			cur[j] = 1 + min(prev[j], cur[j-1], prev[j-1])
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
