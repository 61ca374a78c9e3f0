package reimburse

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimburse/internal/expense"
	"github.com/zombor/reimburse/internal/organize"
	"github.com/zombor/reimburse/internal/report"
)

var _ = Describe("Directory mode", func() {
	var (
		tmpDir  string
		input   string
		output  string
		scanner *mockScanner
	)

	write := func(rel, content string) string {
		path := filepath.Join(input, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	glob := func(pattern string) []string {
		matches, err := filepath.Glob(filepath.Join(output, pattern))
		Expect(err).NotTo(HaveOccurred())
		return matches
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		input = filepath.Join(tmpDir, "发票")
		output = filepath.Join(tmpDir, DefaultOutputName)
		Expect(os.MkdirAll(input, 0755)).To(Succeed())

		scanner = newMockScanner()
		scanner.records["trip"] = taxiVoucher()
		scanner.records["invoice"] = taxiInvoice()
	})

	Describe("ScanFiles", func() {
		BeforeEach(func() {
			write("b.pdf", "x")
			write("a.JPG", "x")
			write("notes.txt", "x")
			write(".hidden.pdf", "x")
			write(".cache/c.pdf", "x")
			write("sub/d.png", "x")
			write("out/e.pdf", "x")
		})

		It("lists supported documents in order", func() {
			files, err := ScanFiles(input, filepath.Join(input, "out"))
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(Equal([]string{
				filepath.Join(input, "a.JPG"),
				filepath.Join(input, "b.pdf"),
				filepath.Join(input, "sub", "d.png"),
			}))
		})

		It("fails for a missing directory", func() {
			_, err := ScanFiles(filepath.Join(tmpDir, "missing"), "")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("OrganizeDirectory", func() {
		var (
			mode   organize.Mode
			result *DirectoryResult
			err    error
		)

		BeforeEach(func() {
			mode = organize.ModeCopy
			write("IMG_001.pdf", "trip")
			write("IMG_002.pdf", "invoice")
		})

		JustBeforeEach(func() {
			result, err = OrganizeDirectory(context.Background(), scanner, input, output, mode)
		})

		When("copying", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Err()).NotTo(HaveOccurred())
			})

			It("pairs the documents in one folder", func() {
				Expect(glob("打车票/2024-01-15_*/*.pdf")).To(HaveLen(2))
			})

			It("keeps the originals", func() {
				Expect(filepath.Join(input, "IMG_001.pdf")).To(BeAnExistingFile())
			})

			It("writes the report", func() {
				Expect(result.ReportPath).To(Equal(filepath.Join(output, report.FileName)))
				Expect(result.ReportPath).To(BeAnExistingFile())
			})

			It("summarizes invoices", func() {
				Expect(result.Files).To(Equal(2))
				Expect(result.Summary.Count).To(Equal(1))
				Expect(result.Summary.Total.Equal(decimal.RequireFromString("35.5"))).To(BeTrue())
			})
		})

		When("moving", func() {
			BeforeEach(func() {
				mode = organize.ModeMove
			})

			It("removes the originals", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(input, "IMG_001.pdf")).NotTo(BeAnExistingFile())
				Expect(glob("打车票/*/*.pdf")).To(HaveLen(2))
			})
		})

		When("a document fails to scan", func() {
			BeforeEach(func() {
				scanner.errs["bad"] = errors.New("timeout")
				write("IMG_003.pdf", "bad")
			})

			It("organizes it as other and reports the error", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Errors).To(HaveLen(1))
				Expect(result.Err()).To(MatchError(ContainSubstring("timeout")))
				Expect(glob("其他/*/*.pdf")).To(HaveLen(1))
			})
		})

		When("the output lives inside the input", func() {
			BeforeEach(func() {
				output = filepath.Join(input, DefaultOutputName)
			})

			It("does not rescan earlier results", func() {
				Expect(err).NotTo(HaveOccurred())
				again, err := OrganizeDirectory(context.Background(), scanner, input, output, organize.ModeCopy)
				Expect(err).NotTo(HaveOccurred())
				Expect(again.Files).To(Equal(2))
			})
		})

		When("the input has no documents", func() {
			BeforeEach(func() {
				Expect(os.RemoveAll(input)).To(Succeed())
				Expect(os.MkdirAll(input, 0755)).To(Succeed())
			})

			It("does nothing", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Files).To(BeZero())
				Expect(output).NotTo(BeADirectory())
			})
		})
	})

	Describe("ReportDirectory", func() {
		BeforeEach(func() {
			write("IMG_001.pdf", "trip")
			write("IMG_002.pdf", "invoice")
			_, err := OrganizeDirectory(context.Background(), scanner, input, output, organize.ModeCopy)
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Remove(filepath.Join(output, report.FileName))).To(Succeed())
		})

		It("rebuilds the report from names alone", func() {
			result, err := ReportDirectory(output)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Files).To(Equal(2))
			Expect(result.ReportPath).To(BeAnExistingFile())

			line := result.Summary.Line(expense.BucketTaxi)
			Expect(line.Count).To(Equal(1))
			Expect(line.Amount.Equal(decimal.RequireFromString("35.5"))).To(BeTrue())
		})

		It("fails for a missing directory", func() {
			_, err := ReportDirectory(filepath.Join(tmpDir, "missing"))
			Expect(err).To(HaveOccurred())
		})
	})
})
