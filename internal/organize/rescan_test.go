package organize

import (
	"testing/fstest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/reimburse/internal/expense"
)

var _ = Describe("Rescan", func() {
	var (
		fsys    fstest.MapFS
		buckets map[expense.Bucket][]*expense.Record
		err     error
	)

	BeforeEach(func() {
		file := &fstest.MapFile{Data: []byte("x")}
		fsys = fstest.MapFS{
			"打车票/2024-01-15_滴滴出行_35.00元/01_2024-01-15_凭证_滴滴出行_35.00元.pdf": file,
			"打车票/2024-01-15_滴滴出行_35.00元/02_2024-01-15_发票_滴滴出行_35.30元.pdf": file,
			"打车票/notes.txt": file,
			"餐费（已完成）/2024-03-02_海底捞_128.50元/2024-03-02_发票_海底捞_128.50元.jpg": file,
			"待确认/2024-02-01_滴滴出行/2024-02-01_发票_滴滴出行.pdf":                    file,
			"杂项/x.pdf":     file,
			".hidden/a.pdf": file,
			"报销统计.xlsx":     file,
		}
	})

	JustBeforeEach(func() {
		buckets, err = Rescan(fsys)
	})

	It("does not return an error", func() {
		Expect(err).NotTo(HaveOccurred())
	})

	It("rebuilds the taxi pair", func() {
		taxi := buckets[expense.BucketTaxi]
		Expect(taxi).To(HaveLen(2))

		Expect(taxi[0].IsInvoice).To(BeFalse())
		Expect(taxi[0].Amount.StringFixed(2)).To(Equal("35.00"))
		Expect(taxi[1].IsInvoice).To(BeTrue())
		Expect(taxi[1].Amount.StringFixed(2)).To(Equal("35.30"))
		Expect(taxi[1].Merchant).To(Equal("滴滴出行"))
		Expect(taxi[1].Date).To(Equal("2024-01-15"))
		Expect(taxi[1].Kind).To(Equal(expense.KindTaxi))
	})

	It("resolves annotated folder names", func() {
		Expect(buckets[expense.BucketMeal]).To(HaveLen(1))
		Expect(buckets[expense.BucketMeal][0].Amount.StringFixed(2)).To(Equal("128.50"))
	})

	It("keeps pending and unrecognized folders", func() {
		Expect(buckets[expense.BucketPending]).To(HaveLen(1))
		Expect(buckets[expense.BucketOther]).To(HaveLen(1))
		Expect(buckets[expense.BucketOther][0].FilePath).To(Equal("杂项/x.pdf"))
	})

	It("skips hidden folders", func() {
		total := 0
		for _, recs := range buckets {
			total += len(recs)
		}
		Expect(total).To(Equal(5))
	})

	It("summarizes the rebuilt records", func() {
		s := Summarize(buckets)
		Expect(s.Line(expense.BucketTaxi).Count).To(Equal(1))
		Expect(s.Line(expense.BucketTaxi).Amount.StringFixed(2)).To(Equal("35.30"))
	})
})

var _ = Describe("ParseName", func() {
	It("marks itineraries as vouchers", func() {
		rec := ParseName("2024-01-15_行程单.pdf", "2024-01-15_高德_20.00元", expense.BucketTaxi)
		Expect(rec.IsInvoice).To(BeFalse())
		Expect(rec.Merchant).To(Equal("高德"))
		Expect(rec.Amount.StringFixed(2)).To(Equal("20.00"))
	})

	It("maps travel to train", func() {
		rec := ParseName("2024-05-01_发票_12306.pdf", "2024-05-01_12306", expense.BucketTravel)
		Expect(rec.Kind).To(Equal(expense.KindTrain))
		Expect(rec.ServiceDate).To(Equal("2024-05-01"))
	})
})
