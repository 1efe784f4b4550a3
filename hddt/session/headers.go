package session

import (
	"math/rand"
)

// Fingerprint header pools. Every request group draws a fresh combination so
// the portal cannot correlate request groups by client fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/104.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:105.0) Gecko/20100101 Firefox/105.0",
}

var platforms = []string{
	`"Windows"`,
	`"macOS"`,
	`"Linux"`,
}

// Fingerprint returns one randomized set of client headers for a request
// group against the portal.
func Fingerprint() map[string]string {
	return map[string]string{
		"Accept-Language":    "vi-VN,vi;q=0.9,fr-FR;q=0.8,fr;q=0.7,en-US;q=0.6,en;q=0.5",
		"Connection":         "keep-alive",
		"sec-ch-ua":          `"Google Chrome";v="105", "Not) A; Brand";v="8", "Chromium";v="105"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": platforms[rand.Intn(len(platforms))],
		"User-Agent":         userAgents[rand.Intn(len(userAgents))],
	}
}
