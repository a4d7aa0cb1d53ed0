package ids

import (
	"strconv"
	"sync"
	"time"
)

// 64 位可排序 ID 布局：1 位空 | 41 位毫秒时间戳 | 10 位节点 | 12 位序列
const (
	nodeBits  = 10
	seqBits   = 12
	nodeMax   = (1 << nodeBits) - 1
	seqMask   = (1 << seqBits) - 1
	nodeShift = seqBits
	timeShift = nodeBits + seqBits
)

// 自定义纪元，避免浪费时间戳位
var epochMS = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type source struct {
	mu     sync.Mutex
	nodeID int64
	seq    int64
	lastMS int64
}

var gen = &source{nodeID: 1}

// SetNodeID 部署时按实例编号设置（0~1023），main() 里调一次
func SetNodeID(nodeID int64) {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if nodeID < 0 || nodeID > nodeMax {
		nodeID = 1
	}
	gen.nodeID = nodeID
}

// Generate 生成单调递增的消息/呼叫 ID
func Generate() int64 {
	return gen.next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// NodeOf 解出 ID 的节点编号
func NodeOf(id int64) int64 {
	return (id >> nodeShift) & nodeMax
}

// TimeOf 解出 ID 的生成时间
func TimeOf(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epochMS)
}

func (s *source) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	// 时钟回拨：停在 lastMS 上自旋，宁可慢不可重
	for now < s.lastMS {
		time.Sleep(time.Millisecond)
		now = time.Now().UnixMilli()
	}

	if now == s.lastMS {
		s.seq = (s.seq + 1) & seqMask
		if s.seq == 0 {
			for now <= s.lastMS {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.seq = 0
	}
	s.lastMS = now

	return ((now - epochMS) << timeShift) | (s.nodeID << nodeShift) | s.seq
}
