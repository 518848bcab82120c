package statedb

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/enforce"
	"github.com/EOSTribe/eos-chronicle/logger"
)

// The receiver's durable state: one memory-mapped file holding the
// progress singleton, the recent block-id table and the contract ABI
// table, written as an append-only journal of mutation records grouped
// into revisioned undo sessions.
//
// The header tracks two watermarks. journalEnd advances when a session
// is pushed; journalCommitted advances when sessions become permanent.
// Records between the watermarks belong to pushed-but-uncommitted
// sessions: a restart discards them and reports how many sessions were
// rolled back, so the on-disk state always agrees with a commit
// boundary.

const (
	dbFileName = "chronicle.db"

	headerSize = 4096
	magic      = "CHRONDB1"
	dbVersion  = 1

	offMagic     = 0
	offVersion   = 8
	offSize      = 16
	offRevision  = 24
	offCommitted = 32
	offEnd       = 40
)

const (
	recProgress     = 1
	recPutBlock     = 2
	recDelBlock     = 3
	recPutAbi       = 4
	recDelAbi       = 5
	recSessionBegin = 6
)

type Progress struct {
	Head           uint32
	HeadID         chain.Checksum256
	Irreversible   uint32
	IrreversibleID chain.Checksum256
}

type BlockRef struct {
	BlockNum uint32
	BlockID  chain.Checksum256
}

type DB struct {
	file *os.File
	mem  []byte
	size int

	revision     int64
	committedRev int64
	committedPos int
	endPos       int
	writePos     int

	progress    Progress
	hasProgress bool
	blocks      map[uint32]chain.Checksum256
	abis        map[uint64][]byte

	stack   []*Session
	current *Session
	closed  bool
}

// Open maps the store under dir, creating it if needed, replays the
// committed journal and discards pushed-but-uncommitted sessions.
// Returns the store and the number of sessions rolled back.
func Open(dir string, sizeMB int) (*DB, int, error) {
	if sizeMB < 1 {
		return nil, 0, fmt.Errorf("store size must be at least 1 MB")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, 0, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(dir, dbFileName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open state file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat state file: %w", err)
	}

	wantSize := int64(sizeMB) << 20
	fresh := stat.Size() == 0
	size := stat.Size()
	if size < wantSize {
		if err := file.Truncate(wantSize); err != nil {
			file.Close()
			return nil, 0, fmt.Errorf("failed to size state file: %w", err)
		}
		size = wantSize
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to mmap state file: %w", err)
	}

	db := &DB{
		file:   file,
		mem:    mem,
		size:   int(size),
		blocks: make(map[uint32]chain.Checksum256),
		abis:   make(map[uint64][]byte),
	}

	if fresh {
		db.committedPos = headerSize
		db.endPos = headerSize
		db.writePos = headerSize
		copy(db.mem[offMagic:], magic)
		binary.LittleEndian.PutUint32(db.mem[offVersion:], dbVersion)
		db.writeHeader()
		if err := db.Sync(); err != nil {
			db.closeMapping()
			return nil, 0, err
		}
		return db, 0, nil
	}

	if string(db.mem[offMagic:offMagic+8]) != magic {
		db.closeMapping()
		return nil, 0, fmt.Errorf("state file %s has wrong magic", path)
	}
	if v := binary.LittleEndian.Uint32(db.mem[offVersion:]); v != dbVersion {
		db.closeMapping()
		return nil, 0, fmt.Errorf("state file version %d not supported", v)
	}

	db.committedRev = int64(binary.LittleEndian.Uint64(db.mem[offRevision:]))
	db.committedPos = int(binary.LittleEndian.Uint64(db.mem[offCommitted:]))
	db.endPos = int(binary.LittleEndian.Uint64(db.mem[offEnd:]))
	if db.committedPos < headerSize || db.endPos < db.committedPos || db.endPos > db.size {
		db.closeMapping()
		return nil, 0, fmt.Errorf("state file %s has corrupt watermarks", path)
	}
	db.revision = db.committedRev

	if err := db.replay(); err != nil {
		db.closeMapping()
		return nil, 0, err
	}

	depth, err := db.countDiscardedSessions()
	if err != nil {
		db.closeMapping()
		return nil, 0, err
	}
	if depth > 0 {
		logger.Printf("statedb", "Discarding %d uncommitted revisions", depth)
	}

	db.endPos = db.committedPos
	db.writePos = db.committedPos
	db.writeHeader()
	if err := db.Sync(); err != nil {
		db.closeMapping()
		return nil, 0, err
	}
	return db, depth, nil
}

func (db *DB) closeMapping() {
	if db.mem != nil {
		unix.Munmap(db.mem)
		db.mem = nil
	}
	if db.file != nil {
		db.file.Close()
		db.file = nil
	}
}

func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	err := db.Sync()
	db.closeMapping()
	return err
}

func (db *DB) Sync() error {
	if err := unix.Msync(db.mem, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync failed: %w", err)
	}
	return nil
}

func (db *DB) writeHeader() {
	binary.LittleEndian.PutUint64(db.mem[offSize:], uint64(db.size))
	binary.LittleEndian.PutUint64(db.mem[offRevision:], uint64(db.committedRev))
	binary.LittleEndian.PutUint64(db.mem[offCommitted:], uint64(db.committedPos))
	binary.LittleEndian.PutUint64(db.mem[offEnd:], uint64(db.endPos))
}

// Revision returns the highest session revision handed out.
func (db *DB) Revision() int64 {
	return db.revision
}

// SetRevision moves the revision counter forward, e.g. when the stream
// skips ahead of the last session. Not legal while a session is open,
// and never backwards past a pending session.
func (db *DB) SetRevision(rev int64) {
	enforce.ENFORCE(db.current == nil, "SetRevision with an open session")
	if len(db.stack) > 0 {
		enforce.ENFORCE(rev >= db.stack[len(db.stack)-1].revision,
			"SetRevision below a pending session")
	}
	db.revision = rev
}

func (db *DB) UndoStackSize() int {
	return len(db.stack)
}

// FreePercent reports the unused share of the mapped journal.
func (db *DB) FreePercent() int {
	return (db.size - db.writePos) * 100 / db.size
}

// --- reads ---

func (db *DB) GetProgress() (Progress, bool) {
	return db.progress, db.hasProgress
}

func (db *DB) BlockID(blockNum uint32) (chain.Checksum256, bool) {
	id, ok := db.blocks[blockNum]
	return id, ok
}

func (db *DB) BlockCount() int {
	return len(db.blocks)
}

// BlocksInRange returns the received blocks with lo < block_num <= hi,
// in ascending order.
func (db *DB) BlocksInRange(lo, hi uint32) []BlockRef {
	out := make([]BlockRef, 0, len(db.blocks))
	for bn, id := range db.blocks {
		if bn > lo && bn <= hi {
			out = append(out, BlockRef{BlockNum: bn, BlockID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNum < out[j].BlockNum })
	return out
}

func (db *DB) GetContractAbi(account uint64) ([]byte, bool) {
	abi, ok := db.abis[account]
	return abi, ok
}

func (db *DB) ContractAbiCount() int {
	return len(db.abis)
}

// --- journal ---

func (db *DB) appendRecord(rec []byte) {
	enforce.ENFORCE(db.writePos+len(rec) <= db.size,
		"state database is full, increase receiver-state-db-size")
	copy(db.mem[db.writePos:], rec)
	db.writePos += len(rec)
}

func putUint32Rec(buf []byte, kind byte, v uint32) []byte {
	buf = append(buf, kind)
	return binary.LittleEndian.AppendUint32(buf, v)
}

func (db *DB) journalProgress(p Progress) {
	rec := make([]byte, 0, 1+8+64)
	rec = append(rec, recProgress)
	rec = binary.LittleEndian.AppendUint32(rec, p.Head)
	rec = binary.LittleEndian.AppendUint32(rec, p.Irreversible)
	rec = append(rec, p.HeadID[:]...)
	rec = append(rec, p.IrreversibleID[:]...)
	db.appendRecord(rec)
}

func (db *DB) journalBlock(kind byte, bn uint32, id chain.Checksum256) {
	rec := make([]byte, 0, 1+4+32)
	rec = putUint32Rec(rec, kind, bn)
	rec = append(rec, id[:]...)
	db.appendRecord(rec)
}

func (db *DB) journalPutAbi(account uint64, abi []byte) {
	rec := make([]byte, 0, 1+8+4+len(abi))
	rec = append(rec, recPutAbi)
	rec = binary.LittleEndian.AppendUint64(rec, account)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(len(abi)))
	rec = append(rec, abi...)
	db.appendRecord(rec)
}

func (db *DB) journalDelAbi(account uint64) {
	rec := make([]byte, 0, 1+8)
	rec = append(rec, recDelAbi)
	rec = binary.LittleEndian.AppendUint64(rec, account)
	db.appendRecord(rec)
}

func (db *DB) journalSessionBegin(rev int64) {
	rec := make([]byte, 0, 1+8)
	rec = append(rec, recSessionBegin)
	rec = binary.LittleEndian.AppendUint64(rec, uint64(rev))
	db.appendRecord(rec)
}

type journalReader struct {
	mem []byte
	pos int
	end int
}

func (r *journalReader) take(n int) ([]byte, error) {
	if r.pos+n > r.end {
		return nil, fmt.Errorf("corrupt journal: record truncated at offset %d", r.pos)
	}
	b := r.mem[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// readRecord reads one record and applies it when apply is set. Returns
// the record kind.
func (db *DB) readRecord(r *journalReader, apply bool) (byte, error) {
	kindBuf, err := r.take(1)
	if err != nil {
		return 0, err
	}
	kind := kindBuf[0]

	switch kind {
	case recProgress:
		b, err := r.take(8 + 64)
		if err != nil {
			return 0, err
		}
		if apply {
			var p Progress
			p.Head = binary.LittleEndian.Uint32(b)
			p.Irreversible = binary.LittleEndian.Uint32(b[4:])
			copy(p.HeadID[:], b[8:40])
			copy(p.IrreversibleID[:], b[40:72])
			db.progress = p
			db.hasProgress = true
		}
	case recPutBlock, recDelBlock:
		b, err := r.take(4 + 32)
		if err != nil {
			return 0, err
		}
		if apply {
			bn := binary.LittleEndian.Uint32(b)
			if kind == recPutBlock {
				var id chain.Checksum256
				copy(id[:], b[4:])
				db.blocks[bn] = id
			} else {
				delete(db.blocks, bn)
			}
		}
	case recPutAbi:
		b, err := r.take(8 + 4)
		if err != nil {
			return 0, err
		}
		account := binary.LittleEndian.Uint64(b)
		n := int(binary.LittleEndian.Uint32(b[8:]))
		abi, err := r.take(n)
		if err != nil {
			return 0, err
		}
		if apply {
			cp := make([]byte, n)
			copy(cp, abi)
			db.abis[account] = cp
		}
	case recDelAbi:
		b, err := r.take(8)
		if err != nil {
			return 0, err
		}
		if apply {
			delete(db.abis, binary.LittleEndian.Uint64(b))
		}
	case recSessionBegin:
		if _, err := r.take(8); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("corrupt journal: unknown record kind %d at offset %d", kind, r.pos-1)
	}
	return kind, nil
}

func (db *DB) replay() error {
	r := &journalReader{mem: db.mem, pos: headerSize, end: db.committedPos}
	for r.pos < r.end {
		if _, err := db.readRecord(r, true); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) countDiscardedSessions() (int, error) {
	r := &journalReader{mem: db.mem, pos: db.committedPos, end: db.endPos}
	depth := 0
	for r.pos < r.end {
		kind, err := db.readRecord(r, false)
		if err != nil {
			return 0, err
		}
		if kind == recSessionBegin {
			depth++
		}
	}
	return depth, nil
}
