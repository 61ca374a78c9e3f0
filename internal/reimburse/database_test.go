package reimburse

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/organize"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveBatch", func() {
		var (
			batch *Batch
			err   error
		)

		BeforeEach(func() {
			summary := organize.Summarize(map[expense.Bucket][]*expense.Record{
				expense.BucketTaxi: {{Amount: decimal.RequireFromString("35.5"), IsInvoice: true}},
			})
			batch = &Batch{
				ID:     "test-id",
				Status: StatusDone,
				Files: []File{
					{Name: "发票.pdf", Path: "uploads/test-id/001_发票.pdf", ContentType: "application/pdf", Size: 12},
				},
				Records: []*expense.Record{{
					Kind:      expense.KindTaxi,
					Subtype:   "滴滴出行",
					Amount:    decimal.RequireFromString("35.5"),
					IsInvoice: true,
					FilePath:  "打车票/2024-01-15_滴滴出行/发票.pdf",
				}},
				Placements: []*organize.Placement{
					{Source: "uploads/test-id/001_发票.pdf", Destination: "打车票/2024-01-15_滴滴出行/发票.pdf", Mode: organize.ModeCopy, Done: true},
				},
				Summary:   &summary,
				CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveBatch(batch)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the batch", func() {
				got, err := db.GetBatch("test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(StatusDone))
				Expect(got.Files).To(Equal(batch.Files))
				Expect(got.Records).To(HaveLen(1))
				Expect(got.Records[0].Amount.Equal(decimal.RequireFromString("35.5"))).To(BeTrue())
				Expect(got.Placements[0].Done).To(BeTrue())
				Expect(got.Summary.Line(expense.BucketTaxi).Count).To(Equal(1))
				Expect(got.CreatedAt.Equal(batch.CreatedAt)).To(BeTrue())
			})
		})

		When("the batch is saved again", func() {
			It("should replace it", func() {
				batch.Status = StatusFailed
				Expect(db.SaveBatch(batch)).To(Succeed())
				got, err := db.GetBatch("test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(StatusFailed))
			})
		})
	})

	Describe("GetBatch", func() {
		When("the batch does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetBatch("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListBatches", func() {
		When("there are no batches", func() {
			It("returns an empty slice", func() {
				batches, err := db.ListBatches()
				Expect(err).NotTo(HaveOccurred())
				Expect(batches).NotTo(BeNil())
				Expect(batches).To(BeEmpty())
			})
		})

		When("there are batches", func() {
			BeforeEach(func() {
				base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveBatch(&Batch{ID: "a", CreatedAt: base})).To(Succeed())
				Expect(db.SaveBatch(&Batch{ID: "b", CreatedAt: base.Add(2 * time.Hour)})).To(Succeed())
				Expect(db.SaveBatch(&Batch{ID: "c", CreatedAt: base.Add(time.Hour)})).To(Succeed())
			})

			It("returns them newest first", func() {
				batches, err := db.ListBatches()
				Expect(err).NotTo(HaveOccurred())
				ids := []string{batches[0].ID, batches[1].ID, batches[2].ID}
				Expect(ids).To(Equal([]string{"b", "c", "a"}))
			})
		})
	})

	Describe("DeleteBatch", func() {
		It("removes the batch", func() {
			Expect(db.SaveBatch(&Batch{ID: "gone"})).To(Succeed())
			Expect(db.DeleteBatch("gone")).To(Succeed())
			_, err := db.GetBatch("gone")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("ignores missing batches", func() {
			Expect(db.DeleteBatch("never")).To(Succeed())
		})
	})

	Describe("NewBoltDB", func() {
		When("the path is not writable", func() {
			It("returns an error", func() {
				_, err := NewBoltDB(filepath.Join(tmpDir, "missing", "dir", "test.db"))
				Expect(err).To(HaveOccurred())
			})
		})

		When("the database is reopened", func() {
			It("keeps its data", func() {
				Expect(db.SaveBatch(&Batch{ID: "kept"})).To(Succeed())
				Expect(db.Close()).To(Succeed())

				var err error
				db, err = NewBoltDB(dbPath)
				Expect(err).NotTo(HaveOccurred())
				_, err = db.GetBatch("kept")
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})
})
