package features

import (
	"net/url"
	"regexp"
	"strings"

	"phishSentinel/business/ensemble"

	"github.com/pobyzaarif/goshortcute"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var suspiciousKeywords = []string{
	"login", "verify", "update", "secure", "account", "signin", "password", "ebayisapi", "webscr",
}

var adNetworkDomains = map[string]struct{}{
	"taboola.com": {}, "outbrain.com": {}, "revcontent.com": {}, "googlesyndication.com": {},
	"adroll.com": {}, "adsrvr.org": {}, "rubiconproject.com": {}, "pubmatic.com": {},
	"appnexus.com": {}, "openx.net": {}, "criteo.com": {}, "adblade.com": {}, "yimg.com": {},
	"doubleclick.net": {}, "yieldmanager.com": {}, "yieldmanager.net": {}, "yieldmanager.org": {},
	"yieldmanager.info": {}, "yieldmanager.biz": {},
}

var (
	redirectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)redirect[\w%]*=`),
		regexp.MustCompile(`(?i)next[\w%]*=`),
		regexp.MustCompile(`(?i)url[\w%]*=`),
		regexp.MustCompile(`(?i)target[\w%]*=`),
	}
	base64Href   = regexp.MustCompile(`^[A-Za-z0-9+/]{20,}={0,2}$`)
	base64Marker = regexp.MustCompile(`(?i)base64,`)
	dataURISrc   = regexp.MustCompile(`(?i)src=['"]data:`)
)

// Content feature names.
const (
	HTMLTagCount               = "html_tag_count"
	FormCount                  = "form_count"
	InputCount                 = "input_count"
	AnchorCount                = "anchor_count"
	ScriptCount                = "script_count"
	IframeCount                = "iframe_count"
	ImgCount                   = "img_count"
	MetaRefreshCount           = "meta_refresh_count"
	AdNetworkAssetCount        = "ad_network_asset_count"
	FaviconDomainMismatch      = "favicon_domain_mismatch"
	DomainMismatchLinkRatio    = "domain_mismatch_link_ratio"
	ExternalStylesheetRatio    = "external_stylesheet_ratio"
	HTMLLength                 = "html_length"
	TitleLength                = "title_length"
	TextToHTMLRatio            = "text_to_html_ratio"
	DocumentTextEntropy        = "document_text_entropy"
	SuspiciousKeywordCount     = "suspicious_keyword_count"
	Base64AssetCount           = "base64_asset_count"
	DataURIAssetCount          = "data_uri_asset_count"
	InlineStyleCount           = "inline_style_count"
	PasswordFieldCount         = "password_field_count"
	HiddenRedirectElementCount = "hidden_redirect_element_count"
	NonHTTPSResourceRatio      = "non_https_resource_ratio"
	ExternalResourceCount      = "external_resource_count"
	PasswordResetLinkCount     = "password_reset_link_count"
	RedirectPatternCount       = "redirect_pattern_count"
	ExternalDomainCount        = "external_domain_count"
)

// registrableDomain keeps the last two labels of host.
func registrableDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// page resolves links against the document URL.
type page struct {
	base   *url.URL
	domain string
}

func (p page) linkDomain(link string) string {
	if p.base == nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return registrableDomain(p.base.ResolveReference(ref).Hostname())
}

func (p page) isExternal(link string) bool {
	d := p.linkDomain(link)
	return d != "" && d != p.domain
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textContent(c, sb)
	}
}

func documentElement(doc *html.Node) *html.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return doc
}

// ExtractContent computes the content model features from the raw HTML of a
// page served at pageURL. It returns false when the document cannot be parsed.
func ExtractContent(rawHTML, pageURL string) (ensemble.FeatureVector, bool) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ensemble.FeatureVector{}, false
	}
	root := documentElement(doc)

	var p page
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		p.base = u
		p.domain = registrableDomain(u.Hostname())
	}

	var (
		tags, forms, inputs, scripts, iframes, imgs, metaRefresh int
		adAssets, inlineStyles, passwords, hidden              int
		stylesheets, externalStylesheets                       int
		faviconMismatch                                        bool
		faviconSeen                                            bool
		title                                                  *html.Node
		anchors                                                []*html.Node
		resources                                              []string
		externalDomains                                        = make(map[string]struct{})
	)

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n != root {
			tags++
			if style, ok := attr(n, "style"); ok && style != "" {
				inlineStyles++
				ls := strings.ToLower(style)
				if strings.Contains(ls, "display:none") || strings.Contains(ls, "opacity:0") {
					hidden++
				}
			}
			for _, key := range []string{"href", "src"} {
				if link, ok := attr(n, key); ok && link != "" {
					if d := p.linkDomain(link); d != "" && d != p.domain {
						externalDomains[d] = struct{}{}
					}
				}
			}

			switch n.DataAtom {
			case atom.Form:
				forms++
			case atom.Input:
				inputs++
				if t, _ := attr(n, "type"); strings.EqualFold(t, "password") {
					passwords++
				}
			case atom.A:
				if _, ok := attr(n, "href"); ok {
					anchors = append(anchors, n)
				}
			case atom.Script:
				scripts++
				if src, ok := attr(n, "src"); ok && src != "" {
					resources = append(resources, src)
					if _, ad := adNetworkDomains[p.linkDomain(src)]; ad {
						adAssets++
					}
				}
			case atom.Iframe:
				iframes++
				if src, ok := attr(n, "src"); ok && src != "" {
					resources = append(resources, src)
					if _, ad := adNetworkDomains[p.linkDomain(src)]; ad {
						adAssets++
					}
				}
			case atom.Img:
				imgs++
				src, _ := attr(n, "src")
				resources = append(resources, src)
			case atom.Meta:
				if he, _ := attr(n, "http-equiv"); strings.EqualFold(he, "refresh") {
					metaRefresh++
				}
			case atom.Link:
				rel, _ := attr(n, "rel")
				rel = strings.ToLower(rel)
				href, hasHref := attr(n, "href")
				if strings.Contains(rel, "stylesheet") {
					stylesheets++
					if hasHref && href != "" && p.isExternal(href) {
						externalStylesheets++
					}
				}
				if strings.Contains(rel, "icon") && !faviconSeen {
					faviconSeen = true
					faviconMismatch = hasHref && href != "" && p.isExternal(href)
				}
			case atom.Title:
				if title == nil {
					title = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	var text strings.Builder
	textContent(root, &text)
	rawText := text.String()
	htmlLength := len(rawHTML)

	fv := ensemble.NewFeatureVector(27)
	fv.Set(HTMLTagCount, float64(tags))
	fv.Set(FormCount, float64(forms))
	fv.Set(InputCount, float64(inputs))
	fv.Set(AnchorCount, float64(len(anchors)))
	fv.Set(ScriptCount, float64(scripts))
	fv.Set(IframeCount, float64(iframes))
	fv.Set(ImgCount, float64(imgs))
	fv.Set(MetaRefreshCount, float64(metaRefresh))
	fv.Set(AdNetworkAssetCount, float64(adAssets))
	fv.SetBool(FaviconDomainMismatch, faviconMismatch)

	mismatched, resetLinks, redirects := 0, 0, 0
	for _, a := range anchors {
		href, _ := attr(a, "href")
		if p.isExternal(href) {
			mismatched++
		}
		var at strings.Builder
		textContent(a, &at)
		lt := strings.ToLower(at.String())
		if (strings.Contains(lt, "reset") || strings.Contains(lt, "forgot")) && strings.Contains(lt, "password") {
			resetLinks++
		}
		if hasRedirectPattern(href) {
			redirects++
		}
	}
	fv.Set(DomainMismatchLinkRatio, ratio(mismatched, len(anchors)))
	fv.Set(ExternalStylesheetRatio, ratio(externalStylesheets, stylesheets))
	fv.Set(HTMLLength, float64(htmlLength))

	titleLength := 0
	if title != nil {
		var tb strings.Builder
		textContent(title, &tb)
		titleLength = len(strings.TrimSpace(tb.String()))
	}
	fv.Set(TitleLength, float64(titleLength))
	fv.Set(TextToHTMLRatio, ratio(len(rawText), htmlLength))
	fv.Set(DocumentTextEntropy, shannonEntropy(rawText))

	lower := strings.ToLower(rawText)
	keywords := 0
	for _, w := range suspiciousKeywords {
		keywords += strings.Count(lower, w)
	}
	fv.Set(SuspiciousKeywordCount, float64(keywords))
	fv.Set(Base64AssetCount, float64(len(base64Marker.FindAllStringIndex(rawHTML, -1))))
	fv.Set(DataURIAssetCount, float64(len(dataURISrc.FindAllStringIndex(rawHTML, -1))))
	fv.Set(InlineStyleCount, float64(inlineStyles))
	fv.Set(PasswordFieldCount, float64(passwords))
	fv.Set(HiddenRedirectElementCount, float64(hidden))

	nonHTTPS, external := 0, 0
	for _, r := range resources {
		if r != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(r)), "https://") {
			nonHTTPS++
		}
		if r != "" && p.isExternal(r) {
			external++
		}
	}
	fv.Set(NonHTTPSResourceRatio, ratio(nonHTTPS, len(resources)))
	fv.Set(ExternalResourceCount, float64(external))
	fv.Set(PasswordResetLinkCount, float64(resetLinks))
	fv.Set(RedirectPatternCount, float64(redirects))
	fv.Set(ExternalDomainCount, float64(len(externalDomains)))

	return fv, true
}

// hasRedirectPattern checks href as written, percent-decoded and, for long
// base64-looking values, base64-decoded.
func hasRedirectPattern(href string) bool {
	candidates := []string{href}
	if dec, err := url.QueryUnescape(href); err == nil && dec != href {
		candidates = append(candidates, dec)
	}
	if len(href) > 32 && base64Href.MatchString(href) {
		if dec := goshortcute.StringtoBase64Decode(href); dec != "" {
			candidates = append(candidates, dec)
		}
	}
	for _, pat := range redirectPatterns {
		for _, c := range candidates {
			if pat.MatchString(c) {
				return true
			}
		}
	}
	return false
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
