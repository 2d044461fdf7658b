package orchestrator

import (
	"sync"
	"time"
)

// Phase 登录阶段
type Phase int

const (
	PhaseSignedOut Phase = iota
	PhaseAuthenticating
	PhaseSignedIn
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseSignedIn:
		return "signed_in"
	default:
		return "signed_out"
	}
}

// Status 同步状态，进程内唯一
type Status struct {
	IsSyncing    bool       `json:"is_syncing"`
	LastSyncTime *time.Time `json:"last_sync_time"`
	Error        *string    `json:"error"`
	IsSignedIn   bool       `json:"is_signed_in"`
	Phase        string     `json:"phase"`
}

// machine 显式状态机
// syncing 是唯一的同步互斥标记，检查和设置在同一把锁内完成
type machine struct {
	mu      sync.Mutex
	phase   Phase
	syncing bool
	last    *time.Time
	err     *string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Status)
}

func newMachine() *machine {
	return &machine{subs: map[int]func(Status){}}
}

func (m *machine) snapshotLocked() Status {
	s := Status{
		IsSyncing:  m.syncing,
		IsSignedIn: m.phase == PhaseSignedIn,
		Phase:      m.phase.String(),
	}
	if m.last != nil {
		t := *m.last
		s.LastSyncTime = &t
	}
	if m.err != nil {
		e := *m.err
		s.Error = &e
	}
	return s
}

func (m *machine) status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *machine) currentPhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// update 在锁内修改状态，返回修改后的快照并通知订阅者
func (m *machine) update(fn func(m *machine)) Status {
	m.mu.Lock()
	fn(m)
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.broadcast(s)
	return s
}

// beginAuth 只有未登录时可以开始登录
func (m *machine) beginAuth() (Phase, bool) {
	m.mu.Lock()
	prev := m.phase
	if prev != PhaseSignedOut {
		m.mu.Unlock()
		return prev, false
	}
	m.phase = PhaseAuthenticating
	m.err = nil
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.broadcast(s)
	return prev, true
}

// beginSync 已登录且没有同步在进行时占用同步标记
func (m *machine) beginSync() (ok bool, signedIn bool) {
	m.mu.Lock()
	if m.phase != PhaseSignedIn {
		m.mu.Unlock()
		return false, false
	}
	if m.syncing {
		m.mu.Unlock()
		return false, true
	}
	m.syncing = true
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.broadcast(s)
	return true, true
}

func (m *machine) setError(msg string) {
	m.err = &msg
}

func (m *machine) subscribe(fn func(Status)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *machine) broadcast(s Status) {
	m.subMu.Lock()
	fns := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
