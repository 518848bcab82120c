package statedb

import (
	"github.com/EOSTribe/eos-chronicle/chain"
	"github.com/EOSTribe/eos-chronicle/enforce"
)

// Session is a revision-tagged batch of mutations. Mutations to the
// core tables are only legal between StartUndoSession and Push; a
// session that is dropped instead of pushed is undone.

type opKind int

const (
	opProgress opKind = iota
	opPutBlock
	opDelBlock
	opPutAbi
	opDelAbi
)

type undoOp struct {
	kind opKind

	prevProgress Progress
	hadProgress  bool

	blockNum uint32
	blockID  chain.Checksum256

	account uint64
	prevAbi []byte
	hadAbi  bool
}

type Session struct {
	db       *DB
	revision int64
	startPos int
	endPos   int
	undo     []undoOp
	pushed   bool
	dead     bool
}

// StartUndoSession opens a new session at revision Revision()+1. Only
// one session may be open at a time.
func (db *DB) StartUndoSession() *Session {
	enforce.ENFORCE(db.current == nil, "an undo session is already open")
	db.revision++
	s := &Session{
		db:       db,
		revision: db.revision,
		startPos: db.writePos,
	}
	db.journalSessionBegin(s.revision)
	db.current = s
	return s
}

func (s *Session) Revision() int64 {
	return s.revision
}

// Push promotes the session to the pending stack and advances the
// durable journal watermark.
func (s *Session) Push() {
	enforce.ENFORCE(!s.dead && !s.pushed, "session already finished")
	enforce.ENFORCE(s.db.current == s, "pushing a session that is not open")
	s.pushed = true
	s.endPos = s.db.writePos
	s.db.stack = append(s.db.stack, s)
	s.db.current = nil
	s.db.endPos = s.db.writePos
	s.db.writeHeader()
}

// Drop undoes an open session that will not be pushed. Pushed sessions
// are rolled back through DB.Undo instead.
func (s *Session) Drop() {
	if s.dead || s.pushed {
		return
	}
	enforce.ENFORCE(s.db.current == s, "dropping a session that is not open")
	s.rollback()
	s.db.current = nil
	s.db.writePos = s.startPos
	s.db.revision = s.revision - 1
	s.dead = true
}

func (s *Session) rollback() {
	db := s.db
	for i := len(s.undo) - 1; i >= 0; i-- {
		op := &s.undo[i]
		switch op.kind {
		case opProgress:
			db.progress = op.prevProgress
			db.hasProgress = op.hadProgress
		case opPutBlock:
			delete(db.blocks, op.blockNum)
		case opDelBlock:
			db.blocks[op.blockNum] = op.blockID
		case opPutAbi:
			if op.hadAbi {
				db.abis[op.account] = op.prevAbi
			} else {
				delete(db.abis, op.account)
			}
		case opDelAbi:
			db.abis[op.account] = op.prevAbi
		}
	}
	s.undo = nil
}

// Undo rolls back the top-of-stack session.
func (db *DB) Undo() {
	enforce.ENFORCE(db.current == nil, "cannot undo with an open session")
	enforce.ENFORCE(len(db.stack) > 0, "undo stack is empty")
	s := db.stack[len(db.stack)-1]
	db.stack = db.stack[:len(db.stack)-1]
	s.rollback()
	s.dead = true
	db.writePos = s.startPos
	db.endPos = s.startPos
	db.revision = s.revision - 1
	db.writeHeader()
}

// Commit makes every pending session with revision <= rev permanent.
func (db *DB) Commit(rev int64) error {
	moved := false
	for len(db.stack) > 0 && db.stack[0].revision <= rev {
		s := db.stack[0]
		db.stack = db.stack[1:]
		db.committedPos = s.endPos
		db.committedRev = s.revision
		s.undo = nil
		s.dead = true
		moved = true
	}
	if moved {
		db.writeHeader()
	}
	return db.Sync()
}

func (db *DB) mutableSession() *Session {
	enforce.ENFORCE(db.current != nil, "core table mutation outside an undo session")
	return db.current
}

// --- mutations (session required) ---

func (db *DB) UpsertProgress(p Progress) {
	s := db.mutableSession()
	s.undo = append(s.undo, undoOp{
		kind:         opProgress,
		prevProgress: db.progress,
		hadProgress:  db.hasProgress,
	})
	db.progress = p
	db.hasProgress = true
	db.journalProgress(p)
}

func (db *DB) PutBlock(blockNum uint32, id chain.Checksum256) {
	s := db.mutableSession()
	_, exists := db.blocks[blockNum]
	enforce.ENFORCE(!exists, "received block inserted twice", blockNum)
	s.undo = append(s.undo, undoOp{kind: opPutBlock, blockNum: blockNum})
	db.blocks[blockNum] = id
	db.journalBlock(recPutBlock, blockNum, id)
}

// DeleteBlocksBelow removes every received block with block_num < lib.
func (db *DB) DeleteBlocksBelow(lib uint32) {
	s := db.mutableSession()
	for bn, id := range db.blocks {
		if bn < lib {
			s.undo = append(s.undo, undoOp{kind: opDelBlock, blockNum: bn, blockID: id})
			delete(db.blocks, bn)
			db.journalBlock(recDelBlock, bn, id)
		}
	}
}

func (db *DB) PutContractAbi(account uint64, abi []byte) {
	s := db.mutableSession()
	prev, had := db.abis[account]
	s.undo = append(s.undo, undoOp{kind: opPutAbi, account: account, prevAbi: prev, hadAbi: had})
	cp := make([]byte, len(abi))
	copy(cp, abi)
	db.abis[account] = cp
	db.journalPutAbi(account, abi)
}

// DeleteContractAbi removes the account's durable ABI row; reports
// whether a row existed.
func (db *DB) DeleteContractAbi(account uint64) bool {
	s := db.mutableSession()
	prev, had := db.abis[account]
	if !had {
		return false
	}
	s.undo = append(s.undo, undoOp{kind: opDelAbi, account: account, prevAbi: prev})
	delete(db.abis, account)
	db.journalDelAbi(account)
	return true
}
