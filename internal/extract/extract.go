// Package extract fills record fields from raw document text using
// ordered pattern rules. Every rule is total: a miss yields the zero value.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
)

// Keywords ties a kind to the words that identify it and the subtype
// label given to documents recognized only by those words.
type Keywords struct {
	Kind    expense.Kind
	Subtype string
	Words   []string
}

// DefaultKeywords is the category table in precedence order.
func DefaultKeywords() []Keywords {
	return []Keywords{
		{expense.KindTaxi, "打车出行", []string{"滴滴", "高德", "美团打车", "曹操", "首汽", "出租车", "网约车", "快车", "专车", "打车"}},
		{expense.KindTrain, "火车票", []string{"12306", "火车票", "高铁", "动车", "铁路", "车票"}},
		{expense.KindFlight, "机票", []string{"航空", "机票", "登机牌", "航班", "携程", "飞猪", "去哪儿"}},
		{expense.KindHotel, "住宿", []string{"酒店", "宾馆", "住宿", "客房", "民宿", "如家", "汉庭", "全季", "亚朵", "希尔顿", "万豪"}},
		{expense.KindMeal, "餐饮", []string{"餐饮", "餐厅", "饭店", "美团", "饿了么", "外卖", "午餐", "晚餐", "早餐"}},
	}
}

// formalMarkers are the tax-authority identifiers that mark a formal invoice.
var formalMarkers = []string{"发票代码", "发票号码", "税额", "价税合计", "增值税", "电子发票"}

const (
	otherSubtype   = "其他"
	unknownSubtype = "未识别"
	maxMerchant    = 50
)

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:合计|总计|实付|实收|金额|价税合计|应付|支付)[：:]*\s*[¥￥]?\s*(\d+\.?\d*)`),
		regexp.MustCompile(`[¥￥]\s*(\d+\.?\d*)`),
		regexp.MustCompile(`(\d+\.?\d*)\s*元`),
		regexp.MustCompile(`(?:小计|总额)[：:]*\s*(\d+\.?\d*)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})[年\-/](\d{1,2})[月\-/](\d{1,2})[日号]?`),
		regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`),
	}

	invoicePatterns = []*regexp.Regexp{
		regexp.MustCompile(`发票号码[：:]*\s*(\d+)`),
		regexp.MustCompile(`No[\.:]?\s*(\d+)`),
		regexp.MustCompile(`发票代码[：:]*\s*(\d+)`),
	}

	merchantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`销售方[：:]*\s*([^\n]+)`),
		regexp.MustCompile(`(?:名称|公司)[：:]*\s*([^\n]+?(?:公司|店|餐厅|酒店))`),
	}
)

// Extractor applies the rule tables. It holds no mutable state and is
// safe to share between batches.
type Extractor struct {
	keywords []Keywords
}

// New returns an Extractor using DefaultKeywords.
func New() *Extractor {
	return NewWithKeywords(DefaultKeywords())
}

// NewWithKeywords returns an Extractor using a custom category table.
func NewWithKeywords(keywords []Keywords) *Extractor {
	return &Extractor{keywords: keywords}
}

// Category returns the first kind whose keywords appear in text, with
// its subtype label. No hit yields other.
func (e *Extractor) Category(text string) (expense.Kind, string) {
	lower := strings.ToLower(text)
	for _, k := range e.keywords {
		for _, w := range k.Words {
			if strings.Contains(lower, strings.ToLower(w)) {
				return k.Kind, k.Subtype
			}
		}
	}
	return expense.KindOther, otherSubtype
}

// Amount returns the largest positive value captured by the first
// pattern that matches at all.
func (e *Extractor) Amount(text string) decimal.Decimal {
	for _, p := range amountPatterns {
		matches := p.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		best := decimal.Zero
		for _, m := range matches {
			v, err := decimal.NewFromString(strings.TrimSuffix(m[1], "."))
			if err != nil || !v.IsPositive() {
				continue
			}
			if v.GreaterThan(best) {
				best = v
			}
		}
		if best.IsPositive() {
			return best
		}
	}
	return decimal.Zero
}

// Date returns the first valid calendar date in text as YYYY-MM-DD.
func (e *Extractor) Date(text string) string {
	for _, p := range datePatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if d, ok := isoDate(m[1], m[2], m[3]); ok {
				return d
			}
		}
	}
	return ""
}

func isoDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	s := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", false
	}
	return s, true
}

// InvoiceNumber returns the first labeled invoice number.
func (e *Extractor) InvoiceNumber(text string) string {
	for _, p := range invoicePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsFormal reports whether text carries any formal invoice marker.
func (e *Extractor) IsFormal(text string) bool {
	for _, kw := range formalMarkers {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Merchant returns the labeled seller name, truncated.
func (e *Extractor) Merchant(text string) string {
	for _, p := range merchantPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return truncate(strings.TrimSpace(m[1]), maxMerchant)
		}
	}
	return ""
}

// Fill returns rec with every unset field filled from text. Fields that
// already hold a value are left alone. Formality is only inferred for
// records that arrived without a kind, since an upstream classifier's
// voucher verdict cannot be told apart from an unset flag.
func (e *Extractor) Fill(text string, rec expense.Record) expense.Record {
	if strings.TrimSpace(text) == "" {
		return rec
	}

	unclassified := rec.Kind == ""
	if unclassified {
		kind, subtype := e.Category(text)
		rec.Kind = kind
		if rec.Subtype == "" && kind != expense.KindOther {
			rec.Subtype = subtype
		}
		rec.IsInvoice = rec.IsInvoice || e.IsFormal(text)
	}
	if rec.Amount.IsZero() {
		rec.Amount = e.Amount(text)
	}
	if rec.Date == "" {
		rec.Date = e.Date(text)
	}
	if rec.InvoiceNumber == "" {
		rec.InvoiceNumber = e.InvoiceNumber(text)
	}
	if rec.Merchant == "" {
		rec.Merchant = e.Merchant(text)
	}
	if rec.RawText == "" {
		rec.RawText = text
	}
	return rec
}

// Analyze builds a record from text alone. Local rules cannot tell an
// issue date from a consumption date, so the service date stays empty.
func (e *Extractor) Analyze(text string) expense.Record {
	if strings.TrimSpace(text) == "" {
		return expense.Record{
			Kind:        expense.KindOther,
			Subtype:     unknownSubtype,
			Description: "无法识别内容",
		}
	}
	rec := e.Fill(text, expense.Record{})
	if rec.Subtype == "" {
		rec.Subtype = otherSubtype
	}
	rec.Description = "本地识别: " + rec.Subtype
	return rec
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
