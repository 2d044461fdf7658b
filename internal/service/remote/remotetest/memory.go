// Package remotetest 提供内存版远程后端，供测试使用
package remotetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weiwangfds/novelsync/internal/service/remote"
)

type file struct {
	ref     remote.FileRef
	content []byte
	seq     int
}

// MemoryBackend 内存后端，记录各类调用次数，可注入错误
type MemoryBackend struct {
	mu     sync.Mutex
	files  map[string]*file
	seq    int
	calls  map[string]int
	failOn map[string]error
	now    func() time.Time
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		files:  map[string]*file{},
		calls:  map[string]int{},
		failOn: map[string]error{},
		now:    time.Now,
	}
}

// FailOn 让指定操作(list/create/update/download/delete/ping)返回 err，err 为 nil 时取消
func (m *MemoryBackend) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

// Calls 返回某个操作的调用次数
func (m *MemoryBackend) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls 返回全部调用次数
func (m *MemoryBackend) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Seed 直接放入一个文件(不计调用次数)，允许同名
func (m *MemoryBackend) Seed(name string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(name, content).ref.FileID
}

// Content 按名称返回最早创建的同名文件内容
func (m *MemoryBackend) Content(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := m.byName(name)
	if len(matches) == 0 {
		return nil, false
	}
	return append([]byte(nil), matches[0].content...), true
}

// Count 返回同名文件数量
func (m *MemoryBackend) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byName(name))
}

func (m *MemoryBackend) put(name string, content []byte) *file {
	m.seq++
	f := &file{
		ref: remote.FileRef{
			FileID:       fmt.Sprintf("file-%d", m.seq),
			FileName:     name,
			ModifiedTime: m.now(),
			Size:         int64(len(content)),
		},
		content: append([]byte(nil), content...),
		seq:     m.seq,
	}
	m.files[f.ref.FileID] = f
	return f
}

func (m *MemoryBackend) byName(name string) []*file {
	var matches []*file
	for _, f := range m.files {
		if f.ref.FileName == name {
			matches = append(matches, f)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })
	return matches
}

func (m *MemoryBackend) enter(op string) error {
	m.calls[op]++
	return m.failOn[op]
}

func (m *MemoryBackend) List(_ context.Context, name string) ([]remote.FileRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("list"); err != nil {
		return nil, err
	}
	var refs []remote.FileRef
	for _, f := range m.byName(name) {
		refs = append(refs, f.ref)
	}
	return refs, nil
}

func (m *MemoryBackend) Create(_ context.Context, name string, content []byte) (*remote.FileRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return nil, err
	}
	ref := m.put(name, content).ref
	return &ref, nil
}

func (m *MemoryBackend) Update(_ context.Context, fileID string, content []byte) (*remote.FileRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return nil, err
	}
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	f.content = append([]byte(nil), content...)
	f.ref.ModifiedTime = m.now()
	f.ref.Size = int64(len(content))
	ref := f.ref
	return &ref, nil
}

func (m *MemoryBackend) Download(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("download"); err != nil {
		return nil, err
	}
	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return append([]byte(nil), f.content...), nil
}

func (m *MemoryBackend) Delete(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	delete(m.files, fileID)
	return nil
}

// TestConnection 实现 remote.ConnectionTester
func (m *MemoryBackend) TestConnection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter("ping")
}
