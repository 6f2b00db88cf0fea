package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"github.com/ledongthuc/pdf"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for reading receipts
const receiptScanPrompt = `You are analyzing a receipt, invoice or fiscal coupon submitted for an expense reimbursement. Read all text in the document and extract:

1. **Invoice number**: the invoice, coupon or document number. Digits and letters only.
2. **Issue date**: the date the document was issued, converted to ISO 8601 (YYYY-MM-DD).
3. **Total amount**: the final total paid, as a number (e.g. 42.75).
4. **Merchant**: the name of the establishment or supplier, usually the header of the document.

Return ONLY valid JSON in this exact format:
{
  "invoice_number": "string",
  "issue_date": "YYYY-MM-DD",
  "amount": 0.00,
  "merchant": "string"
}

Important:
- The amount must be a number (not a string)
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// maxTextHint bounds the PDF text layer appended to the prompt
const maxTextHint = 4000

// promptFor returns the prompt, extended with the document's text layer when it has one
func promptFor(data []byte, contentType string) string {
	if !strings.EqualFold(strings.TrimSpace(contentType), "application/pdf") {
		return receiptScanPrompt
	}
	text, err := pdfText(data)
	if err != nil {
		slog.Debug("PDF has no readable text layer", "error", err)
		return receiptScanPrompt
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return receiptScanPrompt
	}
	return receiptScanPrompt + "\n\nThe document's embedded text layer is reproduced below; prefer it over the image when they disagree:\n" + clipText(text, maxTextHint)
}

// clipText cuts text to at most limit bytes without splitting a rune
func clipText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// pdfText extracts the plain text of every page
func pdfText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	var builder strings.Builder
	for page := 1; page <= doc.NumPage(); page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// renderPDF rasterizes the first page of a PDF; receipts are single page
func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEIC(data, mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("unsupported image format (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEIC checks the MIME type and the ftyp box brand of the file
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// toPNG normalizes a receipt to PNG bytes so every provider receives one format
func toPNG(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" && !isHEIC(data, mimeType) {
		return data, nil
	}

	var (
		img image.Image
		err error
	)
	if mimeType == "application/pdf" {
		img, err = renderPDF(data)
	} else {
		img, err = decodeImage(data, mimeType)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
