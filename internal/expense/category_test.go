package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BucketFor", func() {
	DescribeTable("maps kinds to display buckets",
		func(k Kind, want Bucket) {
			Expect(BucketFor(k)).To(Equal(want))
		},
		Entry("taxi", KindTaxi, BucketTaxi),
		Entry("train", KindTrain, BucketTravel),
		Entry("flight", KindFlight, BucketTravel),
		Entry("hotel", KindHotel, BucketHotel),
		Entry("meal", KindMeal, BucketMeal),
		Entry("other", KindOther, BucketOther),
		Entry("unknown", Kind("boat"), BucketOther),
	)
})

var _ = Describe("Bucket.Kind", func() {
	It("folds travel onto train", func() {
		Expect(BucketTravel.Kind()).To(Equal(KindTrain))
	})

	It("treats pending as other", func() {
		Expect(BucketPending.Kind()).To(Equal(KindOther))
	})
})

var _ = Describe("Buckets", func() {
	It("lists pending before other", func() {
		Expect(Buckets()).To(Equal([]Bucket{
			BucketTaxi, BucketTravel, BucketHotel, BucketMeal, BucketPending, BucketOther,
		}))
	})
})

var _ = Describe("BucketFromFolder", func() {
	DescribeTable("resolves hand-named folders",
		func(name string, want Bucket, known bool) {
			got, ok := BucketFromFolder(name)
			Expect(got).To(Equal(want))
			Expect(ok).To(Equal(known))
		},
		Entry("standard name", "打车票", BucketTaxi, true),
		Entry("parenthetical note", "打车票（已完成）", BucketTaxi, true),
		Entry("combined travel", "火车票:飞机票（已完成）", BucketTravel, true),
		Entry("meal with suffix", "饮食-差肯德基发票（完成）", BucketMeal, true),
		Entry("hotel alias", "宾馆", BucketHotel, true),
		Entry("pending", "待确认", BucketPending, true),
		Entry("other", "其他", BucketOther, true),
		Entry("unrecognized", "杂项", BucketOther, false),
	)
})
