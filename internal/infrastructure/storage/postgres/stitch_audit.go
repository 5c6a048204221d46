package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"docstitch/internal/core/id"
	"docstitch/internal/domain/stitching"
	"docstitch/internal/domain/trade"
)

// CompressionAlgo specifies the compression algorithm used for a payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// StitchAuditEntry is one committed stitch round in the audit trail.
// Payload holds the source and created document codes as JSON; large
// payloads are stored zstd-compressed. Checksum is a BLAKE2b-256 digest of
// the uncompressed payload so tampering with stored rows is detectable.
type StitchAuditEntry struct {
	ID                id.ID           `db:"id"`
	Action            string          `db:"action"`
	DocKind           trade.Kind      `db:"doc_kind"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Checksum          []byte          `db:"checksum"`
	CreatedAt         time.Time       `db:"created_at"`
}

type stitchPayload struct {
	SourceCodes  []string `json:"sourceCodes"`
	CreatedCodes []string `json:"createdCodes,omitempty"`
}

// StitchAudit records stitch rounds into the stitch_audit table. Writes go
// through the transaction manager, so a rolled-back round leaves no entry.
type StitchAudit struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ stitching.AuditRecorder = (*StitchAudit)(nil)

// NewStitchAudit creates the audit recorder.
func NewStitchAudit(txManager *TxManager) (*StitchAudit, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &StitchAudit{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// RecordStitch implements stitching.AuditRecorder.
func (s *StitchAudit) RecordStitch(ctx context.Context, action string, kind trade.Kind, sourceCodes, createdCodes []string) error {
	payload, err := json.Marshal(stitchPayload{
		SourceCodes:  sourceCodes,
		CreatedCodes: createdCodes,
	})
	if err != nil {
		return fmt.Errorf("marshal stitch payload: %w", err)
	}

	checksum := blake2b.Sum256(payload)

	entry := StitchAuditEntry{
		ID:              id.New(),
		Action:          action,
		DocKind:         kind,
		Payload:         payload,
		CompressionAlgo: CompressionNone,
		Checksum:        checksum[:],
		CreatedAt:       time.Now().UTC(),
	}

	if len(payload) > s.compressThreshold {
		entry.PayloadCompressed = s.encoder.EncodeAll(payload, nil)
		entry.Payload = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO stitch_audit (
			id, action, doc_kind, payload, payload_compressed,
			compression_algo, checksum, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.Action, entry.DocKind,
		entry.Payload, entry.PayloadCompressed, entry.CompressionAlgo,
		entry.Checksum, entry.CreatedAt,
	)
	return err
}

// History retrieves recent audit entries for a document kind, newest first.
// Compressed payloads are inflated and verified against their checksum.
func (s *StitchAudit) History(ctx context.Context, kind trade.Kind, limit int) ([]StitchAuditEntry, error) {
	sql := `
		SELECT id, action, doc_kind, payload, payload_compressed,
		       compression_algo, checksum, created_at
		FROM stitch_audit
		WHERE doc_kind = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []StitchAuditEntry
	for rows.Next() {
		var e StitchAuditEntry
		err := rows.Scan(
			&e.ID, &e.Action, &e.DocKind,
			&e.Payload, &e.PayloadCompressed, &e.CompressionAlgo,
			&e.Checksum, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.PayloadCompressed) > 0 {
			payload, err := s.decoder.DecodeAll(e.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress payload: %w", err)
			}
			e.Payload = payload
			e.PayloadCompressed = nil
		}

		if sum := blake2b.Sum256(e.Payload); string(sum[:]) != string(e.Checksum) {
			return nil, fmt.Errorf("audit entry %s failed checksum verification", e.ID)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
