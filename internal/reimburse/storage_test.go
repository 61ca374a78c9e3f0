package reimburse

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/reimburse/internal/organize"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "store"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			path      string
			data      []byte
			savedPath string
			err       error
		)

		BeforeEach(func() {
			path = "uploads/b1/001_发票.pdf"
			data = []byte("test file content")
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(path, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the path", func() {
				Expect(savedPath).To(Equal(path))
			})

			It("should create parent directories and write the file", func() {
				content, err := os.ReadFile(filepath.Join(tmpDir, "store", path))
				Expect(err).NotTo(HaveOccurred())
				Expect(content).To(Equal(data))
			})
		})

		When("the path escapes the root", func() {
			BeforeEach(func() {
				path = "../outside.pdf"
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("escapes storage")))
				Expect(filepath.Join(tmpDir, "outside.pdf")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		It("reads a saved file", func() {
			_, err := storage.Save("a.pdf", []byte("abc"))
			Expect(err).NotTo(HaveOccurred())
			data, err := storage.Get("a.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("abc")))
		})

		It("fails for a missing file", func() {
			_, err := storage.Get("nope.pdf")
			Expect(err).To(HaveOccurred())
		})

		It("rejects absolute paths", func() {
			_, err := storage.Get("/etc/passwd")
			Expect(err).To(MatchError(ContainSubstring("escapes storage")))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save("results/b1/打车票/x/1.pdf", []byte("1"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes whole directories", func() {
			Expect(storage.Delete("results/b1")).To(Succeed())
			Expect(storage.Exists("results/b1")).To(BeFalse())
			Expect(storage.Exists("results")).To(BeTrue())
		})

		It("fails for missing paths", func() {
			Expect(storage.Delete("results/b2")).To(HaveOccurred())
		})
	})

	Describe("FS", func() {
		It("exposes a directory", func() {
			_, err := storage.Save("results/b1/打车票/x/1.pdf", []byte("1"))
			Expect(err).NotTo(HaveOccurred())

			fsys, err := storage.FS("results/b1")
			Expect(err).NotTo(HaveOccurred())
			data, err := fs.ReadFile(fsys, "打车票/x/1.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("1")))
		})

		It("rejects files", func() {
			_, err := storage.Save("a.pdf", []byte("abc"))
			Expect(err).NotTo(HaveOccurred())
			_, err = storage.FS("a.pdf")
			Expect(err).To(MatchError(ContainSubstring("not a directory")))
		})
	})

	Describe("Place", func() {
		var (
			ctx         context.Context
			source      string
			destination string
			mode        organize.Mode
			err         error
		)

		BeforeEach(func() {
			ctx = context.Background()
			_, saveErr := storage.Save("uploads/b1/001_发票.pdf", []byte("invoice"))
			Expect(saveErr).NotTo(HaveOccurred())
			source = "uploads/b1/001_发票.pdf"
			destination = "results/b1/打车票/2024-01-15_滴滴出行/发票.pdf"
			mode = organize.ModeCopy
		})

		JustBeforeEach(func() {
			err = storage.Place(ctx, source, destination, mode)
		})

		When("copying", func() {
			It("keeps the source", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(storage.Exists(source)).To(BeTrue())
				data, _ := storage.Get(destination)
				Expect(data).To(Equal([]byte("invoice")))
			})
		})

		When("moving", func() {
			BeforeEach(func() {
				mode = organize.ModeMove
			})

			It("removes the source", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(storage.Exists(source)).To(BeFalse())
				Expect(storage.Exists(destination)).To(BeTrue())
			})
		})

		When("the source is outside the root", func() {
			BeforeEach(func() {
				source = filepath.Join(tmpDir, "scan.pdf")
				Expect(os.WriteFile(source, []byte("outside"), 0644)).To(Succeed())
			})

			It("accepts an absolute path", func() {
				Expect(err).NotTo(HaveOccurred())
				data, _ := storage.Get(destination)
				Expect(data).To(Equal([]byte("outside")))
			})
		})

		When("the destination is taken", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save(destination, []byte("other"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("refuses to overwrite", func() {
				Expect(err).To(MatchError(ContainSubstring("destination exists")))
				data, _ := storage.Get(destination)
				Expect(data).To(Equal([]byte("other")))
			})
		})

		When("the source is missing", func() {
			BeforeEach(func() {
				source = "uploads/b1/missing.pdf"
				mode = organize.ModeMove
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
				Expect(storage.Exists(destination)).To(BeFalse())
			})
		})

		When("the context is cancelled", func() {
			BeforeEach(func() {
				c, cancel := context.WithCancel(context.Background())
				cancel()
				ctx = c
			})

			It("does nothing", func() {
				Expect(err).To(MatchError(context.Canceled))
				Expect(storage.Exists(destination)).To(BeFalse())
			})
		})
	})
})
