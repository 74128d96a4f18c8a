package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/telemetry"
	"github.com/ledongthuc/pdf"
)

// BlobStore persists the original uploaded document bytes.
type BlobStore interface {
	PutObject(ctx context.Context, key string, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, key string) error
}

// PageText is one page of extracted document text.
type PageText struct {
	Number int
	Text   string
}

// IngestResult summarizes a completed document ingestion.
type IngestResult struct {
	Filename   string
	SourcePath string
	Pages      int
	Chunks     int
	Tags       []string
}

// Ingestor turns uploaded PDFs into page-attributed memories. Ingestion is
// all-or-nothing: either every chunk of the document is indexed or none are.
type Ingestor struct {
	txRunner TxRunner
	embedder EmbeddingClient
	tagger   TagGenerator
	blobs    BlobStore
	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
}

// NewIngestor creates an Ingestor. blobs may be nil, in which case the
// original bytes are not retained and source_path records the logical key
// only.
func NewIngestor(txRunner TxRunner, embedder EmbeddingClient, tagger TagGenerator, blobs BlobStore) *Ingestor {
	return &Ingestor{
		txRunner: txRunner,
		embedder: embedder,
		tagger:   tagger,
		blobs:    blobs,
		uuidGen:  &DefaultUUIDGenerator{},
		chunkCfg: DefaultChunkConfig(),
	}
}

// SetChunkConfig overrides the default chunking parameters.
func (s *Ingestor) SetChunkConfig(cfg ChunkConfig) {
	if cfg.MaxChars > 0 {
		s.chunkCfg = cfg
	}
}

// IngestPDF validates, extracts, tags, embeds and indexes one PDF upload.
func (s *Ingestor) IngestPDF(ctx context.Context, ownerID, filename string, data []byte) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Ingestor.IngestPDF", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "ingest",
	})
	defer span.End()

	if err := ValidatePDF(filename, data); err != nil {
		return nil, err
	}

	pages, err := ExtractPages(ctx, data)
	if err != nil {
		return nil, err
	}

	sourcePath := fmt.Sprintf("documents/%s/%s", ownerID, filepath.Base(filename))
	indexed := false
	if s.blobs != nil {
		if err := s.blobs.PutObject(ctx, sourcePath, "application/pdf", bytes.NewReader(data)); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to store document", err)
		}
		// A failed ingest must not leave an orphan object behind.
		defer func() {
			if !indexed {
				_ = s.blobs.DeleteObject(ctx, sourcePath)
			}
		}()
	}

	// One tag set for the whole document, derived from the filename plus
	// the opening page.
	tags := s.tagger.GenerateTags(ctx, filename+"\n\n"+pages[0].Text)

	now := time.Now().UTC()
	var memories []*domain.Memory
	for _, page := range pages {
		for _, chunk := range chunkText(page.Text, s.chunkCfg) {
			embedding, err := s.embedder.GenerateEmbedding(ctx, chunk)
			if err != nil {
				span.SetError(err)
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "failed to embed document chunk", err)
			}
			m := domain.NewDocumentMemory(s.uuidGen.NewString(), ownerID, chunk, tags, filepath.Base(filename), sourcePath, page.Number, now)
			m.Embedding = embedding
			if err := domain.ValidateMemory(m); err != nil {
				return nil, err
			}
			memories = append(memories, m)
		}
	}
	if len(memories) == 0 {
		return nil, domain.ErrExtractionFailed
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		memRepo := repos.Memories()
		for _, m := range memories {
			if err := memRepo.Insert(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, storeErr(err)
	}
	indexed = true

	return &IngestResult{
		Filename:   filepath.Base(filename),
		SourcePath: sourcePath,
		Pages:      len(pages),
		Chunks:     len(memories),
		Tags:       tags,
	}, nil
}

// ValidatePDF rejects anything that is not a PDF by extension and magic
// bytes before any parsing happens.
func ValidatePDF(filename string, data []byte) error {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return domain.ErrUnsupportedFormat
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return domain.ErrUnsupportedFormat
	}
	return nil
}

// ExtractPages pulls plain text out of every readable page. Pages with no
// extractable text are dropped; a document with none at all is rejected.
func ExtractPages(ctx context.Context, data []byte) ([]PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "could not parse document", err)
	}

	var pages []PageText
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PageText{Number: pageNum, Text: text})
	}
	if len(pages) == 0 {
		return nil, domain.ErrExtractionFailed
	}
	return pages, nil
}
