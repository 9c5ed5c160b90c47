package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/castmarket/castmarket/internal/domain"
)

// VoteArchiveStore is the slice of the vote journal the archiver reads.
type VoteArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.VoteRecord, error)
}

// QuestionArchiveStore provides terminal questions for archival.
type QuestionArchiveStore interface {
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Question, error)
}

// Archiver implements domain.Archiver by serializing journal rows to JSONL
// and uploading the snapshot to object storage. Snapshots are copies: the
// primary store keeps every row and the vote journal stays append-only.
type Archiver struct {
	writer    domain.BlobWriter
	votes     VoteArchiveStore
	questions QuestionArchiveStore
}

func NewArchiver(writer domain.BlobWriter, votes VoteArchiveStore, questions QuestionArchiveStore) *Archiver {
	return &Archiver{
		writer:    writer,
		votes:     votes,
		questions: questions,
	}
}

// ArchiveVotes snapshots all vote records created before the cutoff to
// archive/votes/YYYY-MM.jsonl and returns the record count.
func (a *Archiver) ArchiveVotes(ctx context.Context, before time.Time) (int64, error) {
	votes, err := a.votes.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive votes query: %w", err)
	}
	if len(votes) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(votes)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive votes marshal: %w", err)
	}

	path := archivePath("votes", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive votes upload: %w", err)
	}
	return int64(len(votes)), nil
}

// ArchiveTerminalQuestions snapshots ended and expired questions whose
// terminal timestamp is before the cutoff to
// archive/questions/YYYY-MM.jsonl and returns the count.
func (a *Archiver) ArchiveTerminalQuestions(ctx context.Context, before time.Time) (int64, error) {
	questions, err := a.questions.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive questions query: %w", err)
	}
	if len(questions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(questions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive questions marshal: %w", err)
	}

	path := archivePath("questions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive questions upload: %w", err)
	}
	return int64(len(questions)), nil
}

// archivePath builds the object key for a snapshot, partitioned by the
// year-month of the cutoff:
//
//	archive/votes/2026-08.jsonl
//	archive/questions/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
