package service

import (
	"sync"
	"time"
)

// Monitor 运行期统计，进程内计数，重启清零
type Monitor struct {
	mu sync.RWMutex

	// 下单统计
	OrderRequests int64
	OrdersPlaced  int64
	// 按错误类别统计被拒绝的下单
	OrdersRejected map[Kind]int64

	StatusChanges   int64
	SuppliesDecided int64

	// 错误统计
	StorageErrors int64

	LastOrderTime    time.Time
	LastStorageError time.Time
}

var globalMonitor = &Monitor{OrdersRejected: make(map[Kind]int64)}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordOrderRequest 记录一次下单请求
func (m *Monitor) RecordOrderRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderRequests++
}

// RecordOrderPlaced 记录下单成功
func (m *Monitor) RecordOrderPlaced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersPlaced++
	m.LastOrderTime = time.Now()
}

// RecordOrderRejected 记录下单失败及原因
func (m *Monitor) RecordOrderRejected(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersRejected[kind]++
}

// RecordStatusChange 记录订单状态变更
func (m *Monitor) RecordStatusChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusChanges++
}

// RecordSupplyDecided 记录补货审批
func (m *Monitor) RecordSupplyDecided() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuppliesDecided++
}

// RecordStorageError 记录数据库错误
func (m *Monitor) RecordStorageError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageErrors++
	m.LastStorageError = time.Now()
}

// MonitorStats 统计快照
type MonitorStats struct {
	OrderRequests    int64          `json:"order_requests"`
	OrdersPlaced     int64          `json:"orders_placed"`
	OrdersRejected   map[Kind]int64 `json:"orders_rejected"`
	SuccessRate      float64        `json:"success_rate"`
	StatusChanges    int64          `json:"status_changes"`
	SuppliesDecided  int64          `json:"supplies_decided"`
	StorageErrors    int64          `json:"storage_errors"`
	LastOrderTime    time.Time      `json:"last_order_time"`
	LastStorageError time.Time      `json:"last_storage_error"`
}

// Snapshot 获取统计信息
func (m *Monitor) Snapshot() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	successRate := float64(0)
	if m.OrderRequests > 0 {
		successRate = float64(m.OrdersPlaced) / float64(m.OrderRequests) * 100
	}
	rejected := make(map[Kind]int64, len(m.OrdersRejected))
	for k, v := range m.OrdersRejected {
		rejected[k] = v
	}
	return MonitorStats{
		OrderRequests:    m.OrderRequests,
		OrdersPlaced:     m.OrdersPlaced,
		OrdersRejected:   rejected,
		SuccessRate:      successRate,
		StatusChanges:    m.StatusChanges,
		SuppliesDecided:  m.SuppliesDecided,
		StorageErrors:    m.StorageErrors,
		LastOrderTime:    m.LastOrderTime,
		LastStorageError: m.LastStorageError,
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderRequests = 0
	m.OrdersPlaced = 0
	m.OrdersRejected = make(map[Kind]int64)
	m.StatusChanges = 0
	m.SuppliesDecided = 0
	m.StorageErrors = 0
}
