package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/store"
)

var ErrRemoteResponse = errors.New("remote exporter returned an invalid response")

type RemoteOptions struct {
	// URL receives a POST with the source file and the edits.
	URL     string
	Timeout time.Duration
	Client  *http.Client
	Logger  observability.Logger
	// MaxResponse bounds the size of the JSON response body.
	MaxResponse int64
}

// RemoteExporter sends the source file and one entry per edited run to a
// rendering backend and returns the file it answers with.
type RemoteExporter struct {
	opts   RemoteOptions
	client *http.Client
	log    observability.Logger
}

func NewRemote(opts RemoteOptions) *RemoteExporter {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxResponse <= 0 {
		opts.MaxResponse = 64 << 20
	}
	return &RemoteExporter{opts: opts, client: client, log: observability.OrNop(opts.Logger)}
}

type remoteEdit struct {
	PageIndex    int     `json:"page_index"`
	OriginalText string  `json:"original_text"`
	NewText      string  `json:"new_text"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	FontSize     float64 `json:"font_size"`
	Color        string  `json:"color"`
}

// PDF fields are base64 encoded by encoding/json.
type remoteRequest struct {
	PDF   []byte       `json:"pdf_base64"`
	Edits []remoteEdit `json:"edits"`
}

type remoteResponse struct {
	PDF []byte `json:"pdf_base64"`
}

func (e *RemoteExporter) Export(ctx context.Context, src Source) ([]byte, error) {
	doc, err := src.Document()
	if err != nil {
		return nil, err
	}
	if doc.Parsed == nil || len(doc.Parsed.Source) == 0 {
		return nil, &Error{Cause: ErrNoSource}
	}
	if e.opts.URL == "" {
		return nil, &Error{Cause: errors.New("remote exporter URL not configured")}
	}
	p := buildPlan(doc)
	req := remoteRequest{PDF: doc.Parsed.Source, Edits: []remoteEdit{}}
	for _, pp := range p.pages {
		for _, ed := range pp.edits {
			if !ed.edited || ed.hidden {
				continue
			}
			x, y := ed.origin(pageHeight(doc, pp.index))
			original := ed.run.OriginalText
			if original == "" {
				original = ed.run.Text
			}
			req.Edits = append(req.Edits, remoteEdit{
				PageIndex:    pp.index,
				OriginalText: original,
				NewText:      ed.text,
				X:            x,
				Y:            y,
				Width:        ed.coverWidth,
				Height:       ed.run.Height,
				FontSize:     ed.fontSize(),
				Color:        hexDigits(ed.color()),
			})
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, e.opts.MaxResponse))
	if err != nil {
		return nil, &Error{Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Cause: fmt.Errorf("%w: status %d: %s", ErrRemoteResponse, resp.StatusCode, snippet(payload))}
	}
	var decoded remoteResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &Error{Cause: fmt.Errorf("%w: %w", ErrRemoteResponse, err)}
	}
	out := decoded.PDF
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		return nil, &Error{Cause: fmt.Errorf("%w: pdf_base64 is not a PDF", ErrRemoteResponse)}
	}
	e.log.Info("remote export done",
		observability.Int("edits", len(req.Edits)),
		observability.Int("bytes", len(out)))
	return out, nil
}

func pageHeight(doc store.Document, index int) float64 {
	if index >= 0 && index < len(doc.Parsed.PageInfo) {
		return doc.Parsed.PageInfo[index].MediaBox.Height()
	}
	return 0
}

func snippet(b []byte) string {
	const n = 200
	if len(b) > n {
		b = b[:n]
	}
	return string(bytes.TrimSpace(b))
}
