package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// ============================================================================
//                              类型定义
// ============================================================================

// Handler 事件处理器
//
// data 为 Emit 传入的事件数据，可以为 nil。
type Handler func(data any)

// HandlerID 处理器注册标识
//
// Go 的函数值不可比较，因此以注册 ID 作为处理器身份。
type HandlerID uint64

// registration 一次处理器注册
type registration struct {
	id      HandlerID
	handler Handler // 原始处理器（Once 注册也保存原始处理器）
	once    bool
	fired   atomic.Bool
}

// node 事件名称节点
type node struct {
	lk   sync.Mutex
	regs []*registration
}

// ============================================================================
//                              Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu sync.RWMutex

	// nodes 事件名称节点映射
	nodes map[string]*node

	nextID atomic.Uint64
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[string]*node),
	}
}

// On 注册持久处理器
//
// 名称去除空白后为空时返回 ErrInvalidName。
func (b *Bus) On(name string, handler Handler) (HandlerID, error) {
	return b.register(name, handler, false)
}

// Once 注册一次性处理器
//
// 处理器在首次触发时、调用之前自动注销，即使并发发射也只会触发一次。
func (b *Bus) Once(name string, handler Handler) (HandlerID, error) {
	return b.register(name, handler, true)
}

// Emit 同步发射事件
//
// 按注册顺序调用该名称下当前注册的所有处理器。没有处理器时为空操作。
func (b *Bus) Emit(name string, data any) error {
	key, ok := normalize(name)
	if !ok {
		return ErrInvalidName
	}

	b.mu.RLock()
	n, exists := b.nodes[key]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	// 拍摄快照，在锁外调用处理器
	n.lk.Lock()
	snapshot := make([]*registration, len(n.regs))
	copy(snapshot, n.regs)
	n.lk.Unlock()

	for _, reg := range snapshot {
		if reg.once {
			if !reg.fired.CompareAndSwap(false, true) {
				continue
			}
			b.remove(key, reg.id)
		}
		reg.handler(data)
	}

	return nil
}

// Handlers 返回该名称下注册的处理器
//
// Once 注册返回的是原始处理器。
func (b *Bus) Handlers(name string) []Handler {
	key, ok := normalize(name)
	if !ok {
		return nil
	}

	b.mu.RLock()
	n, exists := b.nodes[key]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	n.lk.Lock()
	defer n.lk.Unlock()

	handlers := make([]Handler, 0, len(n.regs))
	for _, reg := range n.regs {
		handlers = append(handlers, reg.handler)
	}
	return handlers
}

// Count 返回该名称下注册的处理器数量
func (b *Bus) Count(name string) int {
	key, ok := normalize(name)
	if !ok {
		return 0
	}

	b.mu.RLock()
	n, exists := b.nodes[key]
	b.mu.RUnlock()
	if !exists {
		return 0
	}

	n.lk.Lock()
	defer n.lk.Unlock()
	return len(n.regs)
}

// Names 返回所有存在处理器的事件名称
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.nodes))
	for name, n := range b.nodes {
		n.lk.Lock()
		if len(n.regs) > 0 {
			names = append(names, name)
		}
		n.lk.Unlock()
	}
	return names
}

// RemoveHandler 移除处理器
//
// 移除最近一次添加的匹配注册；不存在时为空操作。
func (b *Bus) RemoveHandler(name string, id HandlerID) {
	key, ok := normalize(name)
	if !ok {
		return
	}
	b.remove(key, id)
}

// RemoveAllForName 移除该名称下的所有处理器
func (b *Bus) RemoveAllForName(name string) {
	key, ok := normalize(name)
	if !ok {
		return
	}

	b.mu.Lock()
	delete(b.nodes, key)
	b.mu.Unlock()
}

// RemoveAll 移除所有处理器
func (b *Bus) RemoveAll() {
	b.mu.Lock()
	b.nodes = make(map[string]*node)
	b.mu.Unlock()
}

// ============================================================================
//                              内部方法
// ============================================================================

// register 添加注册
func (b *Bus) register(name string, handler Handler, once bool) (HandlerID, error) {
	key, ok := normalize(name)
	if !ok {
		return 0, ErrInvalidName
	}

	reg := &registration{
		id:      HandlerID(b.nextID.Add(1)),
		handler: handler,
		once:    once,
	}

	b.withNode(key, func(n *node) {
		n.regs = append(n.regs, reg)
	})

	return reg.id, nil
}

// withNode 在节点上执行操作（节点不存在时创建）
func (b *Bus) withNode(key string, cb func(*node)) {
	b.mu.Lock()

	n, ok := b.nodes[key]
	if !ok {
		n = &node{}
		b.nodes[key] = n
	}

	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
}

// remove 从后向前查找并移除注册
func (b *Bus) remove(key string, id HandlerID) {
	b.mu.Lock()
	n, ok := b.nodes[key]
	if !ok {
		b.mu.Unlock()
		return
	}

	n.lk.Lock()
	for i := len(n.regs) - 1; i >= 0; i-- {
		if n.regs[i].id == id {
			n.regs = append(n.regs[:i:i], n.regs[i+1:]...)
			break
		}
	}
	empty := len(n.regs) == 0
	n.lk.Unlock()

	// 没有处理器时删除节点
	if empty {
		delete(b.nodes, key)
	}
	b.mu.Unlock()
}

// normalize 规范化事件名称
func normalize(name string) (string, bool) {
	key := strings.TrimSpace(name)
	return key, key != ""
}
