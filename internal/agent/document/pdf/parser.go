package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/resume-extractor/internal/models"
)

// Document is an opened PDF whose pages can be read as text runs.
type Document interface {
	NumPage() int
	// PageRuns returns the positioned text runs of page i (1-based) in reading order.
	PageRuns(i int) ([]string, error)
}

// ParserFactory opens in-memory PDF documents.
type ParserFactory interface {
	Open(data []byte) (Document, error)
}

// ParserFactoryFunc adapts a function to ParserFactory.
type ParserFactoryFunc func(data []byte) (Document, error)

func (f ParserFactoryFunc) Open(data []byte) (Document, error) { return f(data) }

// ReaderFactory opens documents with github.com/ledongthuc/pdf.
// Documents are read from the byte slice only: no file or network access,
// no script evaluation and no external process.
type ReaderFactory struct {
	// MaxPages caps how many pages are exposed, 0 means no cap
	MaxPages int
}

var (
	defaultFactoryOnce sync.Once
	defaultFactory     *ReaderFactory
)

// DefaultParserFactory returns a lazily built shared ReaderFactory.
func DefaultParserFactory() *ReaderFactory {
	defaultFactoryOnce.Do(func() {
		defaultFactory = &ReaderFactory{MaxPages: 50}
	})
	return defaultFactory
}

// Open parses data. The library panics on some malformed input so the panic
// is turned into a Corrupt error.
func (f *ReaderFactory) Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = models.NewExtractError(models.KindCorrupt,
				fmt.Sprintf("failed to parse PDF: %v", r), nil)
		}
	}()

	reader := bytes.NewReader(data)
	r, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, classifyOpenError(data, err)
	}

	n := r.NumPage()
	if f.MaxPages > 0 && n > f.MaxPages {
		n = f.MaxPages
	}
	return &readerDocument{reader: r, pages: n}, nil
}

// classifyOpenError tags a load failure. Encrypted files fail with
// ErrInvalidPassword or with an unsupported encryption scheme.
func classifyOpenError(data []byte, err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return models.NewExtractError(models.KindEncrypted, "PDF is password protected", err)
	}
	if bytes.Contains(data, []byte("/Encrypt")) && strings.Contains(err.Error(), "encrypt") {
		return models.NewExtractError(models.KindEncrypted, "PDF is encrypted", err)
	}
	return models.NewExtractError(models.KindCorrupt, fmt.Sprintf("failed to parse PDF: %v", err), err)
}

type readerDocument struct {
	reader *pdf.Reader
	pages  int
}

func (d *readerDocument) NumPage() int { return d.pages }

func (d *readerDocument) PageRuns(i int) (runs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()

	page := d.reader.Page(i)
	if page.V.IsNull() {
		return nil, nil
	}
	return pageRuns(page), nil
}

// tjWordGap is the TJ adjustment, in thousandths of text space, from which a
// gap reads as a word break instead of kerning.
const tjWordGap = 250

type textRun struct {
	x, y float64
	text string
}

// pageRuns emits one run per text-showing operator, so the fragments of a
// kerned TJ array stay one word. Runs are ordered top to bottom, then left to right.
func pageRuns(page pdf.Page) []string {
	fonts := make(map[string]pdf.TextEncoding)
	for _, name := range page.Fonts() {
		fonts[name] = page.Font(name).Encoder()
	}

	var (
		enc           pdf.TextEncoding
		x, y, leading float64
		found         []textRun
	)
	decode := func(s string) string {
		if enc == nil {
			return s
		}
		return enc.Decode(s)
	}
	show := func(s string) {
		if strings.TrimSpace(s) != "" {
			found = append(found, textRun{x: x, y: y, text: s})
		}
	}

	pdf.Interpret(page.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "BT":
			x, y = 0, 0
		case "Tf":
			if n == 2 {
				enc = fonts[args[0].Name()]
			}
		case "TL":
			if n == 1 {
				leading = args[0].Float64()
			}
		case "Tm":
			if n == 6 {
				x, y = args[4].Float64(), args[5].Float64()
			}
		case "Td", "TD":
			if n == 2 {
				x += args[0].Float64()
				y += args[1].Float64()
				if op == "TD" {
					leading = -args[1].Float64()
				}
			}
		case "T*":
			y -= leading
		case "Tj":
			if n == 1 {
				show(decode(args[0].RawString()))
			}
		case "'":
			y -= leading
			if n == 1 {
				show(decode(args[0].RawString()))
			}
		case "\"":
			y -= leading
			if n == 3 {
				show(decode(args[2].RawString()))
			}
		case "TJ":
			if n == 1 {
				show(joinTJ(args[0], decode))
			}
		}
	})

	// 同一行按 y 取整分组, 行内按 x 排序
	sort.SliceStable(found, func(a, b int) bool {
		ya, yb := int64(found[a].y), int64(found[b].y)
		if ya != yb {
			return ya > yb
		}
		return found[a].x < found[b].x
	})

	runs := make([]string, 0, len(found))
	for _, r := range found {
		runs = append(runs, r.text)
	}
	return runs
}

// joinTJ concatenates the strings of a TJ array. Adjustments at or beyond
// tjWordGap become a single space.
func joinTJ(arr pdf.Value, decode func(string) string) string {
	var b strings.Builder
	for i := 0; i < arr.Len(); i++ {
		v := arr.Index(i)
		switch v.Kind() {
		case pdf.String:
			b.WriteString(decode(v.RawString()))
		case pdf.Integer, pdf.Real:
			if -v.Float64() >= tjWordGap {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}
