package client

import (
	"sync"
)

const defaultQueueSize = 100

// Queue 断线期间的出站缓冲：严格 FIFO、容量有界，
// 满了淘汰最老一条（绝不拒绝最新的）。纯内存，不跨进程存活。
type Queue struct {
	mu    sync.Mutex
	items [][]byte
	max   int
}

func NewQueue(max int) *Queue {
	if max <= 0 {
		max = defaultQueueSize
	}
	return &Queue{max: max}
}

// Push 入队；发生淘汰时返回 true
func (q *Queue) Push(data []byte) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		evicted = true
	}
	q.items = append(q.items, data)
	return evicted
}

// PopFront 取队头
func (q *Queue) PopFront() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	data := q.items[0]
	q.items = q.items[1:]
	return data, true
}

// PushFront 放回队头（排空中途写失败时保序用）
func (q *Queue) PushFront(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([][]byte{data}, q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
