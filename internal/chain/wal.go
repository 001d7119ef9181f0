package chain

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"bftledger/internal/metrics"
	"bftledger/internal/types"

	"github.com/tidwall/wal"
	"go.etcd.io/etcd/pkg/v3/pbutil"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const RecordTypeBlock byte = 1

// WALJournal appends blocks to a tidwall/wal segment log.
type WALJournal struct {
	mu sync.Mutex

	dir     string
	log     *wal.Log
	nextIdx uint64
}

func OpenWALJournal(dir string, noSync bool) (*WALJournal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	opts := *wal.DefaultOptions
	opts.NoSync = noSync
	log, err := wal.Open(dir, &opts)
	if err != nil {
		return nil, fmt.Errorf("wal.Open: %w", err)
	}

	last, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("wal.LastIndex: %w", err)
	}

	slog.Debug("block journal opened", "dir", dir, "last_index", last)

	return &WALJournal{dir: dir, log: log, nextIdx: last + 1}, nil
}

func (j *WALJournal) Append(b Block) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.log == nil {
		return ErrJournalClosed
	}

	start := time.Now()
	payload := pbutil.MustMarshal(&blockRecord{block: b})
	if err := j.log.Write(j.nextIdx, marshalRecord(RecordTypeBlock, payload)); err != nil {
		return fmt.Errorf("wal.Write(%d): %w", j.nextIdx, err)
	}
	j.nextIdx++

	metrics.WALWritesTotal.Inc()
	metrics.WALWriteDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Records reads every block record in log order.
func (j *WALJournal) Records() ([]Block, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.log == nil {
		return nil, ErrJournalClosed
	}

	empty, err := j.log.IsEmpty()
	if err != nil {
		return nil, fmt.Errorf("wal.IsEmpty: %w", err)
	}
	if empty {
		return nil, nil
	}

	first, err := j.log.FirstIndex()
	if err != nil {
		return nil, fmt.Errorf("wal.FirstIndex: %w", err)
	}
	last, err := j.log.LastIndex()
	if err != nil {
		return nil, fmt.Errorf("wal.LastIndex: %w", err)
	}

	blocks := make([]Block, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		data, err := j.log.Read(idx)
		if err != nil {
			return nil, fmt.Errorf("wal.Read(%d): %w", idx, err)
		}

		recType, payload, err := unmarshalRecord(data)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", idx, err)
		}
		if recType != RecordTypeBlock {
			slog.Warn("skipping unknown journal record", "index", idx, "type", recType)
			continue
		}

		var rec blockRecord
		if !pbutil.MaybeUnmarshal(&rec, payload) {
			return nil, fmt.Errorf("%w: index %d", ErrCorruptRecord, idx)
		}
		blocks = append(blocks, rec.block)
	}
	return blocks, nil
}

func (j *WALJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.log == nil {
		return nil
	}
	err := j.log.Close()
	j.log = nil
	return err
}

// blockRecord encodes a Block as a protobuf Struct.
type blockRecord struct {
	block Block
}

func (r *blockRecord) Marshal() ([]byte, error) {
	txs := make([]any, 0, len(r.block.Transactions))
	for _, tx := range r.block.Transactions {
		txs = append(txs, map[string]any{
			"sender":   float64(tx.SenderID),
			"receiver": float64(tx.ReceiverID),
			"amount":   tx.Amount,
		})
	}

	s, err := structpb.NewStruct(map[string]any{
		"index":         float64(r.block.Index),
		"previous_hash": r.block.PreviousHash,
		"hash":          r.block.Hash,
		"transactions":  txs,
	})
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func (r *blockRecord) Unmarshal(data []byte) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return err
	}

	fields := s.GetFields()
	b := Block{
		Index:        int(fields["index"].GetNumberValue()),
		PreviousHash: fields["previous_hash"].GetStringValue(),
		Hash:         fields["hash"].GetStringValue(),
	}

	for _, v := range fields["transactions"].GetListValue().GetValues() {
		tx := v.GetStructValue().GetFields()
		if tx == nil {
			return fmt.Errorf("%w: transaction is not an object", ErrCorruptRecord)
		}
		b.Transactions = append(b.Transactions, types.NewTransaction(
			int(tx["sender"].GetNumberValue()),
			int(tx["receiver"].GetNumberValue()),
			tx["amount"].GetNumberValue(),
		))
	}

	r.block = b
	return nil
}

func marshalRecord(recType byte, payload []byte) []byte {
	buf := make([]byte, 1+binary.MaxVarintLen64+len(payload))
	buf[0] = recType
	n := binary.PutUvarint(buf[1:], uint64(len(payload)))
	copy(buf[1+n:], payload)
	return buf[:1+n+len(payload)]
}

func unmarshalRecord(data []byte) (byte, []byte, error) {
	if len(data) < 2 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	recType := data[0]
	length, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	start := 1 + n
	end := start + int(length)
	if end > len(data) {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return recType, data[start:end], nil
}
