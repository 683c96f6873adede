package port

import (
	"context"
	"errors"
)

// ErrMalformedResponse 表示库存服务返回了无法解释的响应
// （结构损坏或缺少某个请求过的 sku）。这类失败重试不会恢复，
// 与可重试的传输失败、与业务哨兵拒绝都要区分开。
var ErrMalformedResponse = errors.New("malformed inventory response")

// InventoryCheckRequest 对应一个条目的库存查询，整批一次发出，顺序保持。
type InventoryCheckRequest struct {
	SkuCode  string `json:"skuCode"`
	Quantity int    `json:"quantity"`
}

// InventoryCheckResult 是对一个 sku 的查询结论。
type InventoryCheckResult struct {
	SkuCode   string `json:"skuCode"`
	Available bool   `json:"available"`
}

// InventoryCheckBatch 是一次库存校验的带标签结果。
//
// 对端业务层拒绝（哨兵响应）时 Rejected 为 true——这是一次成功的调用，
// 不计为策略层失败；否则 Results 覆盖每一个请求过的 sku。
type InventoryCheckBatch struct {
	Rejected bool
	Results  []InventoryCheckResult
}

// AllAvailable 只有在调用未被拒绝且每个结果都可用时为真。
func (b *InventoryCheckBatch) AllAvailable() bool {
	if b == nil || b.Rejected || len(b.Results) == 0 {
		return false
	}
	for _, r := range b.Results {
		if !r.Available {
			return false
		}
	}
	return true
}

// InventoryChecker 是库存服务的出站端口。
// 传输失败与超时以 error 返回；不可恢复的数据错误包装 ErrMalformedResponse。
type InventoryChecker interface {
	CheckAvailability(ctx context.Context, requests []InventoryCheckRequest) (*InventoryCheckBatch, error)
}
