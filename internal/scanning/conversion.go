package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// documentPrompt is the shared instruction sent to every model provider.
const documentPrompt = `你是一个专业的发票识别助手。请分析发票/凭证内容，提取关键信息。

请严格按照以下JSON格式返回，不要返回其他内容：
{
    "type": "taxi|train|flight|hotel|meal|other",
    "subtype": "具体平台或类型，如滴滴出行、12306、XX航空、XX酒店、XX餐厅等",
    "amount": 123.45,
    "date": "YYYY-MM-DD",
    "service_date": "YYYY-MM-DD",
    "merchant": "商家/公司名称",
    "invoice_number": "发票号码，如果没有则为空字符串",
    "order_number": "订单号/行程单号，如果没有则为空字符串",
    "is_invoice": true,
    "description": "简要描述这是什么"
}

分类说明：
- taxi: 出租车、网约车（滴滴、高德、美团打车等）
- train: 火车票（12306、高铁、动车等）
- flight: 机票（各航空公司、机场）
- hotel: 住宿（酒店、宾馆、民宿）
- meal: 餐饮（餐厅、外卖）
- other: 其他类型

is_invoice 说明：
- true: 这是正式发票（有发票代码、发票号码、税额等）
- false: 这是行程单、收据、凭证等非正式发票

日期说明：
- date: 开票日期（发票上的开票时间）
- service_date: 实际消费/服务日期（乘车时间、乘机日期、入住日期、消费日期）
- 发票可能是后补开的，开票日期可能晚于实际消费日期

注意：
1. 金额请提取实际支付金额，不是税额
2. 日期请转换为 YYYY-MM-DD 格式
3. service_date 比 date 更重要，请优先准确提取实际消费日期
4. 如果某字段无法识别，请留空
5. 只返回JSON，不要有其他文字`

const systemPrompt = "你是一个专业的发票识别助手，擅长准确读取图片和文档中的全部文字。"

// pdfToImage converts the first page of a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	pages, err := pdfPageImages(pdfData, 1)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return pages[0], nil
}

// pdfPageImages renders up to maxPages pages as PNG.
func pdfPageImages(pdfData []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

func PDFText(pdfData []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading PDF page %d: %w", i+1, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Phone photos are often HEIC, which the image package cannot read
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func isPDF(mimeType string) bool {
	return strings.ToLower(strings.TrimSpace(mimeType)) == "application/pdf"
}

// convertToPNG converts PDFs and non-PNG images to PNG format.
// The boolean reports whether conversion occurred.
func convertToPNG(imageData []byte, mimeType string) ([]byte, bool, error) {
	if isPDF(mimeType) {
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, true, nil
	}
	if mimeType != "image/png" || isHEICFormat(imageData) {
		pngData, err := imageToPNG(imageData, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, true, nil
	}
	return imageData, false, nil
}

// prepareImageData normalizes the MIME type and converts the document to
// PNG if needed. The returned data is always PNG.
func prepareImageData(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	finalImageData, _, err := convertToPNG(imageData, mimeType)
	if err != nil {
		return nil, err
	}
	return finalImageData, nil
}

// textLayer returns the PDF text layer when there is one. Failures are
// not fatal: vision models read the rendered page anyway.
func textLayer(data []byte, contentType string) string {
	if !isPDF(contentType) {
		return ""
	}
	text, err := PDFText(data)
	if err != nil {
		return ""
	}
	return text
}
