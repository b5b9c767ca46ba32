package ruleengine

import (
	"regexp"
	"strings"
)

// Crawler traffic gets no banner: a bot cannot consent, and skipping the
// decision machinery for it keeps the render path cheap. Matching works in
// two passes — browser platform tokens are stripped first, then what is left
// of the user agent is matched against known crawler names. Stripping first
// keeps tokens like "Mozilla" or "like Gecko" from masking the crawler name,
// and keeps the generic tail patterns from firing on ordinary browsers.
var (
	crawlerExclusionsRe = regexp.MustCompile(`(?i)` + strings.Join([]string{
		`Mozilla.[\d.]*`,
		`AppleWebKit.[\d.]*`,
		` Chrome.[\d.]*`,
		`Chromium.[\d.]*`,
		`CriOS.[\d.]*`,
		`Safari.[\d.]*`,
		`Firefox.[\d.]*`,
		`Opera/[\d.]*`,
		`MSIE.[\d.]`,
		`Trident.[\d.]*`,
		`Version.[\d.]*`,
		`(like )?Gecko(.[\d.]*)?`,
		`KHTML,`,
		`compatible`,
		`Windows NT.[\d.]*`,
		`Win64`,
		`WOW64`,
		`x64`,
		`x86_..`,
		`i686`,
		`X11`,
		`Macintosh.`,
		`Mac OS X [\d_]*`,
		`CPU iPhone OS [0-9_]* like Mac OS X`,
		`CPU OS [0-9_]* like Mac OS X`,
		`Android [\d.]*`,
		`Linux`,
		`Ubuntu`,
		`rv:[\d.]*`,
		`Mobile`,
		`Build`,
	}, "|"))

	crawlerRe = regexp.MustCompile(`(?i)` + strings.Join([]string{
		// Search engines.
		`Googlebot`, `AdsBot-Google`, `Mediapartners-Google`, `APIs-Google`,
		`bingbot`, `BingPreview`, `msnbot`, `DuckDuckBot`, `YandexBot`,
		`Baiduspider`, `Slurp`, `SeznamBot`, `MojeekBot`, `Applebot`,
		// Social preview fetchers.
		`facebookexternalhit`, `Facebot`, `WhatsApp`, `LinkedInBot`,
		`TwitterBot`, `TelegramBot`, `Pinterest`, `Discordbot`, `Slackbot`,
		`SkypeUriPreview`,
		// SEO and uptime tooling.
		`Screaming Frog`, `SemrushBot`, `AhrefsBot`, `DotBot`, `MJ12bot`,
		`Rogerbot`, `BLEXBot`, `UptimeRobot`, `StatusCake`, `Pingdom`,
		`GTmetrix`,
		// Archives and aggregators.
		`ia_archiver`, `archive\.org_bot`, `CCBot`, `Feedly`, `Feedfetcher`,
		// AI fetchers.
		`GPTBot`, `ChatGPT-User`, `anthropic-ai`, `Claude-Web`,
		`PerplexityBot`, `YouBot`,
		// HTTP libraries and generic tails.
		`curl`, `wget`, `python-requests`, `axios`, `okhttp`,
		`Go-http-client`, `HTTPie`, `Postman`,
		`bot`, `crawler`, `spider`, `scraper`, `monitor`, `fetcher`,
	}, "|"))
)

// IsCrawler reports whether the user agent belongs to a bot or crawler. An
// empty user agent is not treated as a crawler; plenty of privacy tooling
// blanks the header and those visitors still deserve the banner.
func IsCrawler(userAgent string) bool {
	stripped := strings.TrimSpace(crawlerExclusionsRe.ReplaceAllString(userAgent, ""))
	if stripped == "" {
		return false
	}
	return crawlerRe.MatchString(stripped)
}
