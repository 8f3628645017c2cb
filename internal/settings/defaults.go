package settings

// Configuration keys with compiled-in defaults.
const (
	KeySiteName         = "siteName"
	KeySiteTagline      = "siteTagline"
	KeyHeroTitle        = "heroTitle"
	KeyHeroSubtitle     = "heroSubtitle"
	KeyDiscordURL       = "discordUrl"
	KeyDiscordOnline    = "discordOnline"
	KeyDiscordMembers   = "discordMembers"
	KeyStats            = "stats"
	KeyFooterCopyright  = "footerCopyright"
	KeyFooterDisclaimer = "footerDisclaimer"
	KeyPricing          = "pricing"
)

// Defaults returns the compiled-in configuration map. Database entries, global
// first and then game-scoped, override these values.
func Defaults() map[string]any {
	return map[string]any{
		KeySiteName:       "DORA",
		KeySiteTagline:    "頂級遊戲輔助",
		KeyHeroTitle:      "征服戰場",
		KeyHeroSubtitle:   "業界頂尖的 AI 輔助技術，為您帶來無與倫比的遊戲體驗。",
		KeyDiscordURL:     "https://discord.gg/your-invite",
		KeyDiscordOnline:  "100+",
		KeyDiscordMembers: "1000+",
		KeyStats: []map[string]string{
			{"value": "99.9%", "label": "穩定率"},
			{"value": "24/7", "label": "技術支援"},
			{"value": "1000+", "label": "活躍用戶"},
		},
		KeyFooterCopyright:  "© 2024 DORA. All rights reserved.",
		KeyFooterDisclaimer: "免責聲明：本軟體僅供學習研究使用，使用者須自行承擔使用風險。",
		KeyPricing:          DefaultPricing(),
	}
}

// DefaultPricing returns the built-in plan price table. A zero price marks a
// plan that is not currently offered for direct purchase.
func DefaultPricing() map[string]float64 {
	return map[string]float64{
		"day":      120,
		"week":     0,
		"month":    1400,
		"lifetime": 8000,
	}
}
