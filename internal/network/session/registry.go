package session

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lk2023060901/roomchat/pkg/log"
	"github.com/lk2023060901/roomchat/pkg/metrics"
	"github.com/lk2023060901/roomchat/pkg/util/merr"
	"github.com/lk2023060901/roomchat/pkg/util/typeutil"
)

// Registry 维护当前在线的会话集合，并负责按房间广播。
//
// 约定：
//   - 所有方法之间互斥，广播期间不会有会话加入或离开；
//   - 广播按会话加入的先后顺序写出，发送者自己也会收到。
type Registry interface {
	// Register 加入一个会话，同一 ID 重复加入返回 merr.ErrSessionInvalidState。
	Register(sess Session) error

	// Unregister 按 ID 移除会话，不存在时返回 false。
	Unregister(id uint64) bool

	// Broadcast 将 payload 写给所有当前位于 room 的会话，返回成功写出的数量。
	// 单个会话写失败只记录日志，不影响其他会话。
	Broadcast(room int64, payload []byte) int

	Get(id uint64) (Session, bool)
	Count() int

	// Range 在快照上遍历，回调中可以安全地调用 Registry 的其他方法。
	Range(fn func(sess Session) bool)

	// Rooms 返回当前有会话的房间，升序。
	Rooms() []int64
}

// BaseRegistry 使用一把互斥锁保护有序的会话切片。
type BaseRegistry struct {
	log.Binder

	mu      sync.Mutex
	members []Session
	ids     typeutil.Set[uint64]
}

// 确保 BaseRegistry 实现了 Registry 接口。
var _ Registry = (*BaseRegistry)(nil)

// NewBaseRegistry 创建一个空的注册表。
func NewBaseRegistry() *BaseRegistry {
	r := &BaseRegistry{
		ids: typeutil.NewSet[uint64](),
	}
	r.SetLogger(log.With(log.FieldComponent("registry")).WithRateGroup("registry.broadcast", 1, 30))
	return r
}

// lock 获取互斥锁，并记录等待耗时（毫秒）。
func (r *BaseRegistry) lock(source string) {
	start := time.Now()
	r.mu.Lock()
	metrics.LockCosts.WithLabelValues("registry", source, "mutex", "acquire").
		Set(float64(time.Since(start).Microseconds()) / 1000)
}

// Register 实现 Registry.Register。
func (r *BaseRegistry) Register(sess Session) error {
	if sess == nil {
		return merr.WrapErrSessionInvalidState(0, "nil session")
	}
	id := sess.ID()

	r.lock("register")
	defer r.mu.Unlock()

	if !r.ids.TryInsert(id) {
		return merr.WrapErrSessionInvalidState(id, "already registered")
	}
	r.members = append(r.members, sess)
	metrics.RegistryMembers.Set(float64(len(r.members)))
	return nil
}

// Unregister 实现 Registry.Unregister。
func (r *BaseRegistry) Unregister(id uint64) bool {
	r.lock("unregister")
	defer r.mu.Unlock()

	if !r.ids.TryRemove(id) {
		return false
	}
	idx := slices.IndexFunc(r.members, func(s Session) bool { return s.ID() == id })
	if idx >= 0 {
		r.members = slices.Delete(r.members, idx, idx+1)
	}
	metrics.RegistryMembers.Set(float64(len(r.members)))
	return true
}

// Broadcast 实现 Registry.Broadcast。
func (r *BaseRegistry) Broadcast(room int64, payload []byte) int {
	r.lock("broadcast")
	defer r.mu.Unlock()

	start := time.Now()
	delivered := 0
	for _, sess := range r.members {
		if sess.Room() != room {
			continue
		}
		if err := sess.Send(payload); err != nil {
			metrics.BroadcastFailures.Inc()
			r.Logger().RatedWarn(1, "broadcast write failed",
				log.FieldSessionID(sess.ID()),
				log.FieldRoom(room),
				log.FieldRemote(sess.RemoteAddr()),
				zap.Error(err))
			continue
		}
		delivered++
	}

	metrics.Broadcasts.Inc()
	metrics.BroadcastDeliveries.Add(float64(delivered))
	metrics.BroadcastLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return delivered
}

// Get 实现 Registry.Get。
func (r *BaseRegistry) Get(id uint64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ids.Contain(id) {
		return nil, false
	}
	return lo.Find(r.members, func(s Session) bool { return s.ID() == id })
}

// Count 实现 Registry.Count。
func (r *BaseRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Range 实现 Registry.Range。
func (r *BaseRegistry) Range(fn func(sess Session) bool) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	snapshot := slices.Clone(r.members)
	r.mu.Unlock()

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}

// Rooms 实现 Registry.Rooms。
func (r *BaseRegistry) Rooms() []int64 {
	r.mu.Lock()
	rooms := lo.Uniq(lo.Map(r.members, func(s Session, _ int) int64 { return s.Room() }))
	r.mu.Unlock()

	slices.Sort(rooms)
	return rooms
}
