package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Record", func() {
	Describe("EffectiveDate", func() {
		It("prefers the service date", func() {
			r := Record{Date: "2024-02-01", ServiceDate: "2024-01-28"}
			Expect(r.EffectiveDate()).To(Equal("2024-01-28"))
		})

		It("falls back to the issue date", func() {
			r := Record{Date: "2024-02-01"}
			Expect(r.EffectiveDate()).To(Equal("2024-02-01"))
		})

		It("is empty when neither date is known", func() {
			Expect((&Record{}).EffectiveDate()).To(BeEmpty())
		})
	})

	Describe("Category", func() {
		It("treats an unset kind as other", func() {
			Expect((&Record{}).Category()).To(Equal(KindOther))
		})

		It("keeps a known kind", func() {
			Expect((&Record{Kind: KindHotel}).Category()).To(Equal(KindHotel))
		})
	})

	Describe("Label", func() {
		It("uses the subtype before the merchant", func() {
			r := Record{Subtype: "滴滴出行", Merchant: "北京小桔科技有限公司"}
			Expect(r.Label()).To(Equal("滴滴出行"))
		})

		It("uses the merchant when the subtype is blank", func() {
			r := Record{Subtype: "  ", Merchant: "全季酒店"}
			Expect(r.Label()).To(Equal("全季酒店"))
		})
	})
})

var _ = Describe("ParseKind", func() {
	It("accepts known kinds regardless of case", func() {
		Expect(ParseKind(" Taxi ")).To(Equal(KindTaxi))
		Expect(ParseKind("FLIGHT")).To(Equal(KindFlight))
	})

	It("maps unknown tags to other", func() {
		Expect(ParseKind("parking")).To(Equal(KindOther))
		Expect(ParseKind("")).To(Equal(KindOther))
	})
})

var _ = Describe("Group", func() {
	var (
		voucher *Record
		invoice *Record
	)

	BeforeEach(func() {
		voucher = &Record{Subtype: "行程单"}
		invoice = &Record{Subtype: "发票", IsInvoice: true}
	})

	When("it holds a pair", func() {
		It("finds both members", func() {
			g := Group{Records: []*Record{voucher, invoice}}
			Expect(g.Voucher()).To(BeIdenticalTo(voucher))
			Expect(g.Invoice()).To(BeIdenticalTo(invoice))
			Expect(g.Main()).To(BeIdenticalTo(invoice))
			Expect(g.Len()).To(Equal(2))
		})
	})

	When("it holds a lone voucher", func() {
		It("names the group after the voucher", func() {
			g := Group{Records: []*Record{voucher}}
			Expect(g.Invoice()).To(BeNil())
			Expect(g.Main()).To(BeIdenticalTo(voucher))
		})
	})
})

var _ = Describe("ContentType", func() {
	It("recognizes documents case-insensitively", func() {
		Expect(ContentType("scan.PDF")).To(Equal("application/pdf"))
		Expect(ContentType("IMG_0001.HEIC")).To(Equal("image/heic"))
		Expect(ContentType("a.jpeg")).To(Equal("image/jpeg"))
	})

	It("rejects everything else", func() {
		Expect(ContentType("notes.txt")).To(BeEmpty())
		Expect(Supported("报销统计.xlsx")).To(BeFalse())
		Expect(Supported("photo.webp")).To(BeTrue())
	})
})
