package expense

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of expense categories a document can carry.
type Kind string

const (
	KindTaxi   Kind = "taxi"
	KindTrain  Kind = "train"
	KindFlight Kind = "flight"
	KindHotel  Kind = "hotel"
	KindMeal   Kind = "meal"
	KindOther  Kind = "other"
)

// Kinds returns every known kind in keyword-precedence order.
func Kinds() []Kind {
	return []Kind{KindTaxi, KindTrain, KindFlight, KindHotel, KindMeal, KindOther}
}

// ParseKind maps a free-form tag onto the closed enumeration.
// Unknown or empty tags become KindOther.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k
		}
	}
	return KindOther
}

// Record is a single scanned document: either a formal invoice or a
// voucher (itinerary, receipt, trip summary).
type Record struct {
	Kind          Kind            `json:"type"`
	Subtype       string          `json:"subtype"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`         // issue date, YYYY-MM-DD
	ServiceDate   string          `json:"service_date"` // consumption date, YYYY-MM-DD
	Merchant      string          `json:"merchant"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderNumber   string          `json:"order_number,omitempty"`
	IsInvoice     bool            `json:"is_invoice"`
	Description   string          `json:"description"`
	RawText       string          `json:"raw_text,omitempty"`
	TripRef       string          `json:"trip_ref,omitempty"`
	FilePath      string          `json:"file_path"`
}

// EffectiveDate is the service date when known, otherwise the issue date.
func (r *Record) EffectiveDate() string {
	if r.ServiceDate != "" {
		return r.ServiceDate
	}
	return r.Date
}

// Category returns the record's kind, treating an unset kind as other.
func (r *Record) Category() Kind {
	if r.Kind == "" {
		return KindOther
	}
	return ParseKind(string(r.Kind))
}

// Label is the display name used when naming files: subtype first, then merchant.
func (r *Record) Label() string {
	if s := strings.TrimSpace(r.Subtype); s != "" {
		return s
	}
	return strings.TrimSpace(r.Merchant)
}

// Group is a matched voucher/invoice pair or an unmatched singleton.
// Records keep their input order: voucher first when paired.
type Group struct {
	Records []*Record `json:"records"`
}

// Voucher returns the group's non-invoice record, if any.
func (g Group) Voucher() *Record {
	for _, r := range g.Records {
		if !r.IsInvoice {
			return r
		}
	}
	return nil
}

// Invoice returns the group's formal invoice, if any.
func (g Group) Invoice() *Record {
	for _, r := range g.Records {
		if r.IsInvoice {
			return r
		}
	}
	return nil
}

// Main is the record that names the group: the invoice when present.
func (g Group) Main() *Record {
	if inv := g.Invoice(); inv != nil {
		return inv
	}
	return g.Voucher()
}

// Len returns the number of records in the group.
func (g Group) Len() int {
	return len(g.Records)
}
