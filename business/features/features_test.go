//go:build !integration

package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, fv interface {
	Lookup(string) (float64, bool)
}, name string) float64 {
	t.Helper()
	v, ok := fv.Lookup(name)
	require.True(t, ok, "feature %s missing", name)
	return v
}

func TestExtractURL(t *testing.T) {
	fv, ok := ExtractURL("https://www.example.com/a/b?x=1&y=2")
	require.True(t, ok)
	assert.Equal(t, 14, fv.Len())

	assert.Equal(t, 35.0, value(t, fv, URLLength))
	assert.Equal(t, 2.0, value(t, fv, PathDepth))
	assert.Equal(t, 0.0, value(t, fv, NumSubdomains))
	assert.Equal(t, 11.0, value(t, fv, NumSpecialChars))
	assert.Equal(t, 2.0, value(t, fv, NumDigits))
	assert.Equal(t, 0.0, value(t, fv, NumHyphens))
	assert.Equal(t, 0.0, value(t, fv, HasAtSymbol))
	assert.Equal(t, 2.0, value(t, fv, NumQueryParams))
	assert.InDelta(t, 2.0/35.0, value(t, fv, DigitRatio), 1e-12)
	assert.Equal(t, 1.0, value(t, fv, HasHTTPS))
	assert.Equal(t, 0.0, value(t, fv, UncommonTLD))
	assert.Equal(t, 8.0, value(t, fv, URLTokenCount))
	assert.Greater(t, value(t, fv, URLEntropy), 0.0)
}

func TestExtractURLLookalike(t *testing.T) {
	fv, ok := ExtractURL("http://secure-login.paypa1.xyz/verify@now")
	require.True(t, ok)

	assert.Equal(t, 1.0, value(t, fv, LevenshteinToBrand))
	assert.Equal(t, 1.0, value(t, fv, UncommonTLD))
	assert.Equal(t, 0.0, value(t, fv, HasHTTPS))
	assert.Equal(t, 1.0, value(t, fv, HasAtSymbol))
	assert.Equal(t, 1.0, value(t, fv, NumHyphens))
	assert.Equal(t, 1.0, value(t, fv, NumSubdomains))
}

func TestExtractURLRejectsRelative(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/path", "about:blank"} {
		_, ok := ExtractURL(raw)
		assert.False(t, ok, raw)
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("paypal", "paypal"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "bank"))
}

const loginPage = `<html><head><title> Sign in </title>` +
	`<link rel="stylesheet" href="https://cdn.other.net/a.css">` +
	`<link rel="stylesheet" href="/local.css">` +
	`<link rel="icon" href="https://evil.test/favicon.ico">` +
	`<meta http-equiv="refresh" content="0"></head>` +
	`<body><form><input type="text"><input type="password"></form>` +
	`<a href="https://example.com/reset">Forgot your password?</a>` +
	`<a href="/next?redirect=https://evil.test">go</a>` +
	`<img src="http://img.example.com/x.png">` +
	`<script src="https://www.googlesyndication.com/ad.js"></script>` +
	`<div style="display:none">hidden</div></body></html>`

func TestExtractContent(t *testing.T) {
	fv, ok := ExtractContent(loginPage, "https://shop.example.com/login")
	require.True(t, ok)
	assert.Equal(t, 27, fv.Len())

	assert.Equal(t, 15.0, value(t, fv, HTMLTagCount))
	assert.Equal(t, 1.0, value(t, fv, FormCount))
	assert.Equal(t, 2.0, value(t, fv, InputCount))
	assert.Equal(t, 1.0, value(t, fv, PasswordFieldCount))
	assert.Equal(t, 2.0, value(t, fv, AnchorCount))
	assert.Equal(t, 1.0, value(t, fv, ScriptCount))
	assert.Equal(t, 0.0, value(t, fv, IframeCount))
	assert.Equal(t, 1.0, value(t, fv, ImgCount))
	assert.Equal(t, 1.0, value(t, fv, MetaRefreshCount))
	assert.Equal(t, 1.0, value(t, fv, AdNetworkAssetCount))
	assert.Equal(t, 1.0, value(t, fv, FaviconDomainMismatch))
	assert.Equal(t, 0.0, value(t, fv, DomainMismatchLinkRatio))
	assert.Equal(t, 0.5, value(t, fv, ExternalStylesheetRatio))
	assert.Equal(t, float64(len(loginPage)), value(t, fv, HTMLLength))
	assert.Equal(t, 7.0, value(t, fv, TitleLength))
	assert.Equal(t, 1.0, value(t, fv, SuspiciousKeywordCount))
	assert.Equal(t, 1.0, value(t, fv, InlineStyleCount))
	assert.Equal(t, 1.0, value(t, fv, HiddenRedirectElementCount))
	assert.Equal(t, 0.5, value(t, fv, NonHTTPSResourceRatio))
	assert.Equal(t, 1.0, value(t, fv, ExternalResourceCount))
	assert.Equal(t, 1.0, value(t, fv, PasswordResetLinkCount))
	assert.Equal(t, 1.0, value(t, fv, RedirectPatternCount))
	assert.Equal(t, 3.0, value(t, fv, ExternalDomainCount))

	ratio := value(t, fv, TextToHTMLRatio)
	assert.Greater(t, ratio, 0.0)
	assert.Less(t, ratio, 1.0)
}

func TestExtractContentEmptyDocument(t *testing.T) {
	fv, ok := ExtractContent("", "https://example.com")
	require.True(t, ok)
	assert.Equal(t, 0.0, value(t, fv, AnchorCount))
	assert.Equal(t, 0.0, value(t, fv, DomainMismatchLinkRatio))
	assert.Equal(t, 0.0, value(t, fv, NonHTTPSResourceRatio))
	assert.Equal(t, 0.0, value(t, fv, TextToHTMLRatio))
}

func TestRedirectPatternDecoding(t *testing.T) {
	assert.True(t, hasRedirectPattern("/out?url=https://evil.test"))
	assert.True(t, hasRedirectPattern("/out%3Fnext%3Dhttps%3A%2F%2Fevil.test"))
	assert.True(t, hasRedirectPattern("aHR0cHM6Ly94LnRlc3QvZ28/dGFyZ2V0PWh0dHBzOi8vZXZpbC50ZXN0L3BhZ2U="))
	assert.False(t, hasRedirectPattern("https://example.com/about"))
}
