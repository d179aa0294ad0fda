package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	appconfig "signalflow/config"
	"signalflow/enrich"
	"signalflow/models"
)

// Button is one inline keyboard entry attached to a push message.
type Button struct {
	Text string
	URL  string
}

// Renderer turns token snapshots into localized telegram HTML
// messages. Unknown languages fall back to English.
type Renderer struct {
	tradeURL string
	chartURL string
	now      func() time.Time
}

func NewRenderer(cfg appconfig.DispatchConfig) *Renderer {
	return &Renderer{
		tradeURL: cfg.TradeURL,
		chartURL: cfg.ChartURL,
		now:      time.Now,
	}
}

type labels struct {
	title        string
	premiumTitle string
	marketCap    string
	price        string
	holders      string
	age          string
	activity     string
	smartBuyers  string
	security     string
	mintRevoked  string
	noRugPull    string
	poolBurned   string
	noBlacklist  string
	dev          string
	devSoldOut   string
	trade        string
	chart        string
	tier         string
	footer       string
	tags         map[string]string
}

var locales = map[string]labels{
	"en": {
		title:        "New Signal",
		premiumTitle: "Premium Signal",
		marketCap:    "Market Cap",
		price:        "Price",
		holders:      "Holders",
		age:          "Age",
		activity:     "5m Txns %s | 5m Vol $%s",
		smartBuyers:  "Smart money buyers",
		security:     "Security",
		mintRevoked:  "Mint revoked",
		noRugPull:    "No rug risk",
		poolBurned:   "LP burned",
		noBlacklist:  "No blacklist",
		dev:          "Dev balance",
		devSoldOut:   "Dev sold out",
		trade:        "Trade",
		chart:        "Chart",
		tier:         "Tier %d",
		footer:       "🚨 Community Tips\n- Verify contract permissions and liquidity locks before trading.\n- Follow channel announcements and share your insights.",
		tags: map[string]string{
			enrich.TagKOLBuy:       "KOL wallet bought in",
			enrich.TagSmartCluster: "3+ smart wallets bought",
			enrich.TagWhaleEntry:   "Single smart buy over $10K",
		},
	},
	"zh": {
		title:        "新信号",
		premiumTitle: "高级信号",
		marketCap:    "市值",
		price:        "价格",
		holders:      "持有人",
		age:          "开盘",
		activity:     "5分钟交易 %s | 5分钟量 $%s",
		smartBuyers:  "聪明钱买入",
		security:     "安全检查",
		mintRevoked:  "权限已放弃",
		noRugPull:    "无跑路风险",
		poolBurned:   "底池已烧毁",
		noBlacklist:  "无黑名单",
		dev:          "开发者余额",
		devSoldOut:   "开发者已清仓",
		trade:        "交易",
		chart:        "行情",
		tier:         "等级 %d",
		footer:       "🚨 社区提示\n- 交易前请核实合约权限与流动性锁仓，防范 Rug Pull。\n- 关注频道公告，欢迎分享观点与资讯。",
		tags: map[string]string{
			enrich.TagKOLBuy:       "KOL 钱包买入",
			enrich.TagSmartCluster: "3个以上聪明钱包买入",
			enrich.TagWhaleEntry:   "单笔聪明钱买入超 $10K",
		},
	},
	"ko": {
		title:        "신규 시그널",
		premiumTitle: "프리미엄 시그널",
		marketCap:    "시가총액",
		price:        "가격",
		holders:      "홀더",
		age:          "출시",
		activity:     "5분 거래 %s | 5분 거래량 $%s",
		smartBuyers:  "스마트머니 매수",
		security:     "보안 점검",
		mintRevoked:  "민트 권한 포기",
		noRugPull:    "러그 위험 없음",
		poolBurned:   "LP 소각됨",
		noBlacklist:  "블랙리스트 없음",
		dev:          "개발자 잔액",
		devSoldOut:   "개발자 전량 매도",
		trade:        "거래",
		chart:        "차트",
		tier:         "티어 %d",
		footer:       "🚨 커뮤니티 팁\n- 거래 전 컨트랙트 권한과 유동성 잠금을 확인하여 러그풀을 방지하세요.\n- 채널 공지를 확인하고 인사이트를 공유하세요.",
		tags: map[string]string{
			enrich.TagKOLBuy:       "KOL 지갑 매수",
			enrich.TagSmartCluster: "스마트 지갑 3개 이상 매수",
			enrich.TagWhaleEntry:   "단일 스마트 매수 $10K 초과",
		},
	},
}

func locale(lang string) labels {
	if l, ok := locales[strings.ToLower(lang)]; ok {
		return l
	}
	return locales["en"]
}

func check(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// Message renders the push text for one snapshot in one language.
// premiumTier is 0 for normal pushes.
func (r *Renderer) Message(snap *models.TokenSnapshot, lang string, premiumTier int) string {
	l := locale(lang)

	var b strings.Builder

	title := l.title
	if premiumTier > 0 {
		title = l.premiumTitle
	}
	fmt.Fprintf(&b, "🚀 <b>%s</b> | $%s | %s\n", title, html.EscapeString(snap.Symbol), snap.Chain)
	if premiumTier > 0 {
		fmt.Fprintf(&b, "🏆 "+l.tier+"\n", premiumTier)
	}
	fmt.Fprintf(&b, "📃 <code>%s</code>\n\n", html.EscapeString(snap.TokenAddress))

	fmt.Fprintf(&b, "💰 %s: $%s\n", l.marketCap, formatAmount(snap.EffectiveMarketCap()))
	fmt.Fprintf(&b, "💵 %s: $%s\n", l.price, formatPrice(snap.Price))
	fmt.Fprintf(&b, "👥 %s: %s\n", l.holders, formatCount(snap.Holders))
	fmt.Fprintf(&b, "🕐 %s: %s\n", l.age, formatAge(snap.Age(r.now())))
	fmt.Fprintf(&b, "📊 "+l.activity+"\n", formatCount(snap.M5Txns), formatAmount(snap.M5VolumeUSD))

	if snap.SmartBuyers > 0 {
		fmt.Fprintf(&b, "🧠 %s: %d\n", l.smartBuyers, snap.SmartBuyers)
	}
	for _, tag := range snap.HighlightTags {
		if text, ok := l.tags[tag]; ok {
			fmt.Fprintf(&b, "🔥 %s\n", text)
		}
	}

	fmt.Fprintf(&b, "\n🛡 %s: %s %s | %s %s | %s %s | %s %s\n",
		l.security,
		check(snap.Security.AuthorityRenounced), l.mintRevoked,
		check(snap.Security.NoRugPull), l.noRugPull,
		check(snap.Security.PoolBurned), l.poolBurned,
		check(snap.Security.NoBlacklist), l.noBlacklist,
	)

	if snap.DevSoldOut {
		fmt.Fprintf(&b, "👨‍💻 %s\n", l.devSoldOut)
	} else if snap.DevBalanceSOL > 0 {
		fmt.Fprintf(&b, "👨‍💻 %s: %s SOL\n", l.dev, trimZeros(fmt.Sprintf("%.2f", snap.DevBalanceSOL)))
	}

	if links := r.socialLine(snap); links != "" {
		fmt.Fprintf(&b, "\n🔗 %s\n", links)
	}

	fmt.Fprintf(&b, "\n%s\n", l.footer)

	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) socialLine(snap *models.TokenSnapshot) string {
	var parts []string
	if snap.Socials.Twitter != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">Twitter</a>`, html.EscapeString(snap.Socials.Twitter)))
	}
	if snap.Socials.Website != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">Website</a>`, html.EscapeString(snap.Socials.Website)))
	}
	if snap.Socials.Telegram != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">Telegram</a>`, html.EscapeString(snap.Socials.Telegram)))
	}
	search := fmt.Sprintf(`<a href="https://x.com/search?q=%s">X Search</a>`, snap.TokenAddress)
	parts = append(parts, search)
	return strings.Join(parts, " | ")
}

// Buttons builds the inline keyboard for a message. Templates come
// from config; a missing template drops its button.
func (r *Renderer) Buttons(lang, address string) []Button {
	l := locale(lang)
	var buttons []Button
	if r.tradeURL != "" {
		buttons = append(buttons, Button{Text: l.trade, URL: fmt.Sprintf(r.tradeURL, address)})
	}
	if r.chartURL != "" {
		buttons = append(buttons, Button{Text: l.chart, URL: fmt.Sprintf(r.chartURL, address)})
	}
	return buttons
}
